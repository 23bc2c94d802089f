package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
)

// Placeholder text shown while an image capture is being transcribed.
const processingPlaceholder = "Procesando imagen..."

// IngestCaptureUseCase creates a pending record for a capture and schedules
// background processing, returning immediately with the new record.
type IngestCaptureUseCase struct {
	repo    ports.RecordRepository
	storage ports.ObjectStorage
	queue   ports.TaskQueue
	kind    domain.RecordKind
}

func NewIngestCaptureUseCase(
	repo ports.RecordRepository,
	storage ports.ObjectStorage,
	queue ports.TaskQueue,
	kind domain.RecordKind,
) *IngestCaptureUseCase {
	return &IngestCaptureUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		kind:    kind,
	}
}

func (uc *IngestCaptureUseCase) IngestImage(ctx context.Context, owner, filename string, body io.Reader) (*domain.Record, error) {
	storageKey := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save capture: %w", err)
	}

	rec := &domain.Record{
		Owner:     owner,
		Kind:      uc.kind,
		RawText:   processingPlaceholder,
		Status:    domain.StatusPending,
		ImagePath: storageKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	if err := uc.queue.PublishProcessTask(ctx, domain.ProcessTask{RecordID: rec.ID}); err != nil {
		return nil, fmt.Errorf("publish process task: %w", err)
	}
	return rec, nil
}

func (uc *IngestCaptureUseCase) IngestText(ctx context.Context, owner, text string, patientID *int64) (*domain.Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest text", errors.New("text is empty"))
	}

	rec := &domain.Record{
		Owner:     owner,
		Kind:      uc.kind,
		RawText:   text,
		Status:    domain.StatusPending,
		PatientID: patientID,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	// Text captures have no image to extract: the pipeline enters at the
	// analysis engine.
	if err := uc.queue.PublishProcessTask(ctx, domain.ProcessTask{RecordID: rec.ID, TextOnly: true}); err != nil {
		return nil, fmt.Errorf("publish process task: %w", err)
	}
	return rec, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "capture.bin"
	}
	return base
}
