package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/imgcheck/internal/domain"
	"github.com/mansoorceksport/imgcheck/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// FileField is the multipart field carrying the upload
const FileField = "file"

// UploadHandler handles image uploads
type UploadHandler struct {
	files     domain.FileRepository
	validator domain.ImageValidator
	metrics   *telemetry.UploadMetrics
	logger    *slog.Logger
}

// NewUploadHandler creates a new upload handler. metrics may be nil.
func NewUploadHandler(
	files domain.FileRepository,
	validator domain.ImageValidator,
	metrics *telemetry.UploadMetrics,
	logger *slog.Logger,
) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		files:     files,
		validator: validator,
		metrics:   metrics,
		logger:    logger.With("handler", "UploadHandler"),
	}
}

// Upload handles POST /
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	ctx := c.UserContext()
	log := h.logger.With("request_id", c.GetRespHeader(fiber.HeaderXRequestID))

	fileHeader, err := c.FormFile(FileField)
	if err != nil {
		if hasEmptyFilePart(c) {
			return h.fail(c, log, domain.ErrEmptyFilename)
		}
		return h.fail(c, log, fmt.Errorf("%w: %v", domain.ErrMissingFile, err))
	}

	if fileHeader.Filename == "" {
		return h.fail(c, log, domain.ErrEmptyFilename)
	}
	telemetry.SetSpanAttribute(c, "upload.filename", fileHeader.Filename)

	path, err := h.save(ctx, fileHeader)
	if err != nil {
		return h.fail(c, log, err)
	}
	log.Info("File saved", "path", path)

	// Confirm the file is on disk before handing it to the validator
	size, err := h.files.Size(ctx, path)
	if err != nil {
		return h.fail(c, log, fmt.Errorf("%w: %s: %v", domain.ErrPersistence, path, err))
	}
	log.Info("File size", "path", path, "bytes", size)
	h.metrics.RecordSize(ctx, size)
	telemetry.AddSpanEvent(c, "file.saved",
		attribute.String("file.path", path),
		attribute.Int64("file.size", size),
	)

	result, err := h.check(ctx, path)
	if err != nil {
		return h.fail(c, log, err)
	}
	telemetry.AddSpanEvent(c, "file.validated", attribute.Bool("image.valid", result.OK()))

	if result.OK() {
		h.metrics.RecordOutcome(ctx, telemetry.OutcomeProcessed)
	} else {
		h.metrics.RecordOutcome(ctx, telemetry.OutcomeInvalidImage)
	}

	// Undecodable images are reported with 200 and an error payload
	return c.Status(fiber.StatusOK).JSON(result)
}

// hasEmptyFilePart reports whether the form carries a "file" part that was
// parsed as a plain value. The multipart reader does that for parts sent with
// filename="", which is what browsers submit for an empty file input.
func hasEmptyFilePart(c *fiber.Ctx) bool {
	form, err := c.MultipartForm()
	if err != nil {
		return false
	}
	_, ok := form.Value[FileField]
	return ok
}

func (h *UploadHandler) save(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open upload: %v", domain.ErrPersistence, err)
	}
	defer src.Close()

	path, err := h.files.Save(ctx, fileHeader.Filename, src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return path, nil
}

// check runs the validator, converting a panic into domain.ErrProcessing
func (h *UploadHandler) check(ctx context.Context, path string) (result domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: panic: %v", domain.ErrProcessing, r)
		}
	}()

	result, err = h.validator.Check(ctx, path)
	if err != nil {
		if !errors.Is(err, domain.ErrProcessing) {
			err = fmt.Errorf("%w: %v", domain.ErrProcessing, err)
		}
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: validator returned no result", domain.ErrProcessing)
	}
	return result, nil
}

func (h *UploadHandler) fail(c *fiber.Ctx, log *slog.Logger, err error) error {
	status, message, outcome := errorResponse(err)
	log.Error(message, "error", err)
	h.metrics.RecordOutcome(c.UserContext(), outcome)

	return c.Status(status).JSON(domain.Failure{Reason: message})
}

func errorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrMissingFile):
		return fiber.StatusBadRequest, domain.MsgMissingImage, telemetry.OutcomeMissingFile
	case errors.Is(err, domain.ErrEmptyFilename):
		return fiber.StatusBadRequest, domain.MsgNoSelectedFile, telemetry.OutcomeEmptyFilename
	case errors.Is(err, domain.ErrPersistence):
		return fiber.StatusInternalServerError, domain.MsgFileNotSaved, telemetry.OutcomePersistence
	default:
		return fiber.StatusInternalServerError, domain.MsgProcessingError, telemetry.OutcomeProcessingFail
	}
}
