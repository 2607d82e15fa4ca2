package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// HeaderCorrelationID identifies a logical request across client retries
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderIdempotentReplay is set on responses served from the replay cache
	HeaderIdempotentReplay = "X-Idempotent-Replay"

	idempotencyKeyPrefix = "idempotency:"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware replays successful POST/PUT/PATCH responses for a
// repeated X-Correlation-ID within ttl. Requests without the header, and
// Redis failures, fall through to normal processing.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(HeaderCorrelationID)
		if correlationID == "" {
			return c.Next()
		}

		key := idempotencyKeyPrefix + correlationID
		ctx := c.UserContext()

		cached, err := redisClient.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var resp cachedResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				c.Set(HeaderIdempotentReplay, "true")
				if resp.ContentType != "" {
					c.Set(fiber.HeaderContentType, resp.ContentType)
				}
				return c.Status(resp.Status).Send(resp.Body)
			}
			logger.Warn("Discarding unreadable idempotency entry", "key", key)
		case !errors.Is(err, redis.Nil):
			logger.Warn("Idempotency lookup failed", "key", key, "error", err)
		}

		if err := c.Next(); err != nil {
			return err
		}

		statusCode := c.Response().StatusCode()
		if statusCode < 200 || statusCode >= 300 {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		entry, err := json.Marshal(cachedResponse{
			Status:      statusCode,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        body,
		})
		if err != nil {
			logger.Warn("Failed to encode idempotency entry", "key", key, "error", err)
			return nil
		}

		if err := redisClient.Set(ctx, key, entry, ttl).Err(); err != nil {
			logger.Warn("Failed to store idempotency entry", "key", key, "error", err)
		}

		return nil
	}
}
