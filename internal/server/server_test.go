package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/imgcheck/internal/config"
	"github.com/mansoorceksport/imgcheck/internal/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.MaxUploadSizeMB = 1
	cfg.Upload.Dir = filepath.Join(t.TempDir(), "uploads")
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"
	cfg.Redis.IdempotencyTTL = time.Minute
	return cfg
}

func newTestApp(t *testing.T, redisClient *redis.Client) *fiber.App {
	t.Helper()
	app, err := NewApp(AppDependencies{
		Config:      testConfig(t),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RedisClient: redisClient,
	})
	require.NoError(t, err)
	return app
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func pixel(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	return buf.Bytes()
}

func decode(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "healthy", "service": "imgcheck"}, decode(t, resp))
}

func TestUploadFlow(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(uploadRequest(t, "a.png", pixel(t)), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, map[string]string{"data": "Image processed successfully"}, decode(t, resp))

	resp, err = app.Test(uploadRequest(t, "b.jpg", []byte("not an image")), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, map[string]string{"error": "Invalid image format"}, decode(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, map[string]string{"error": "Missing required image"}, decode(t, resp))
}

func TestRequestIDsAreUnique(t *testing.T) {
	app := newTestApp(t, nil)

	first, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	second, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)

	id := first.Header.Get(fiber.HeaderXRequestID)
	assert.Len(t, id, 26)
	assert.NotEqual(t, id, second.Header.Get(fiber.HeaderXRequestID))
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Contains(t, decode(t, resp), "error")
}

func TestBodyLimit(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(uploadRequest(t, "big.png", bytes.Repeat([]byte{0}, 2*1024*1024)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestIdempotentReplay(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	app := newTestApp(t, client)

	send := func() *http.Response {
		req := uploadRequest(t, "a.png", pixel(t))
		req.Header.Set(middleware.HeaderCorrelationID, "upload-1")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	first := send()
	assert.Equal(t, 200, first.StatusCode)
	assert.Empty(t, first.Header.Get(middleware.HeaderIdempotentReplay))
	firstBody := decode(t, first)

	second := send()
	assert.Equal(t, 200, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(middleware.HeaderIdempotentReplay))
	assert.Equal(t, firstBody, decode(t, second))
}

func TestNewAppFailsOnBadUploadDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.Dir = "/dev/null/uploads"

	_, err := NewApp(AppDependencies{Config: cfg})
	assert.Error(t, err)
}
