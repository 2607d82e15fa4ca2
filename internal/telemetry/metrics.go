package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Upload outcomes recorded on the upload counter
const (
	OutcomeProcessed      = "processed"
	OutcomeInvalidImage   = "invalid_image"
	OutcomeMissingFile    = "missing_file"
	OutcomeEmptyFilename  = "empty_filename"
	OutcomePersistence    = "persistence_error"
	OutcomeProcessingFail = "processing_error"
)

// UploadMetrics counts handled uploads by outcome
type UploadMetrics struct {
	uploads metric.Int64Counter
	bytes   metric.Int64Histogram
}

// NewUploadMetrics registers the upload instruments on meter. A nil meter uses
// the global meter provider.
func NewUploadMetrics(meter metric.Meter) (*UploadMetrics, error) {
	if meter == nil {
		meter = otel.Meter(tracerName)
	}

	uploads, err := meter.Int64Counter("imgcheck.uploads",
		metric.WithDescription("Uploads handled, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	size, err := meter.Int64Histogram("imgcheck.upload.size",
		metric.WithDescription("Size of saved uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &UploadMetrics{uploads: uploads, bytes: size}, nil
}

// RecordOutcome adds one upload with the given outcome
func (m *UploadMetrics) RecordOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.uploads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSize records the size of a saved upload
func (m *UploadMetrics) RecordSize(ctx context.Context, size int64) {
	if m == nil {
		return
	}
	m.bytes.Record(ctx, size)
}
