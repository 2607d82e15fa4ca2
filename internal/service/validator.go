package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"

	// Decoders registered with image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mansoorceksport/imgcheck/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type decodeFunc func(r io.Reader) (image.Image, string, error)

// ImageValidator implements domain.ImageValidator by fully decoding the file
type ImageValidator struct {
	logger *slog.Logger
	decode decodeFunc
}

// NewImageValidator creates a new image validator
func NewImageValidator(logger *slog.Logger) *ImageValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageValidator{
		logger: logger.With("component", "validator"),
		decode: image.Decode,
	}
}

// Check decodes the image at path.
// A missing file or undecodable content yields domain.InvalidImage with a nil
// error; the error return is reserved for faults in the check itself.
func (v *ImageValidator) Check(ctx context.Context, path string) (result domain.Result, err error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "validator.Check")
	defer span.End()
	span.SetAttributes(attribute.String("file.path", path))

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: decoder panic: %v", domain.ErrProcessing, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			v.logger.Warn("Image file does not exist", "path", path)
			return domain.InvalidImage(), nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrProcessing, path, err)
	}
	defer f.Close()

	if mtype, mErr := mimetype.DetectReader(f); mErr == nil {
		v.logger.Debug("Detected content type", "path", path, "mime", mtype.String())
		span.SetAttributes(attribute.String("file.mime", mtype.String()))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: rewind %s: %v", domain.ErrProcessing, path, err)
	}

	img, format, decErr := v.decode(bufio.NewReader(f))
	if decErr != nil {
		v.logger.Info("Image did not decode", "path", path, "error", fmt.Errorf("%w: %v", domain.ErrDecode, decErr))
		span.SetAttributes(attribute.Bool("image.valid", false))
		return domain.InvalidImage(), nil
	}

	bounds := img.Bounds()
	v.logger.Debug("Image decoded",
		"path", path,
		"format", format,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
	)
	span.SetAttributes(
		attribute.Bool("image.valid", true),
		attribute.String("image.format", format),
	)

	return domain.Processed(), nil
}
