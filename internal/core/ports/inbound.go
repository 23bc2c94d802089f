package ports

import (
	"context"
	"io"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// CaptureIngestor creates a pending record from user input and schedules
// background processing, returning immediately with the record id.
type CaptureIngestor interface {
	IngestImage(ctx context.Context, owner, filename string, body io.Reader) (*domain.Record, error)
	IngestText(ctx context.Context, owner, text string, patientID *int64) (*domain.Record, error)
}

// RecordProcessor runs the full processing pipeline for one scheduled task:
// text extraction, analysis, persistence and the owner notification.
type RecordProcessor interface {
	Process(ctx context.Context, task domain.ProcessTask) error
}

// RecordRegenerator re-enters the pipeline with user-edited text.
type RecordRegenerator interface {
	Regenerate(ctx context.Context, owner string, recordID int64, editedText string) error
}
