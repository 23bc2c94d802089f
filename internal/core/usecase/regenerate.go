package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
)

// RegenerateUseCase re-enters the pipeline with user-edited text. When the
// record is image-backed the edit is retained as a correction, feeding the
// few-shot exemplars that bias future vision transcriptions toward the
// user's handwriting.
type RegenerateUseCase struct {
	repo        ports.RecordRepository
	corrections ports.CorrectionStore
	queue       ports.TaskQueue
}

func NewRegenerateUseCase(
	repo ports.RecordRepository,
	corrections ports.CorrectionStore,
	queue ports.TaskQueue,
) *RegenerateUseCase {
	return &RegenerateUseCase{
		repo:        repo,
		corrections: corrections,
		queue:       queue,
	}
}

func (uc *RegenerateUseCase) Regenerate(ctx context.Context, owner string, recordID int64, editedText string) error {
	rec, err := uc.repo.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("fetch record by id: %w", err)
	}
	if rec.Owner != owner {
		return domain.WrapError(domain.ErrRecordNotFound, "regenerate", errors.New("record belongs to another user"))
	}
	if rec.Status == domain.StatusPending || rec.Status == domain.StatusProcessing {
		return domain.WrapError(domain.ErrInvalidInput, "regenerate", errors.New("record is still processing"))
	}

	if rec.ImageBacked() {
		correction := &domain.Correction{
			Owner:         owner,
			ImagePath:     rec.ImagePath,
			CorrectedText: editedText,
			CreatedAt:     time.Now().UTC(),
		}
		// Corrections only improve future transcriptions; a failed save
		// must not block the regeneration the user asked for.
		if err := uc.corrections.Save(ctx, correction); err != nil {
			slog.Warn("correction_save_failed", "record_id", recordID, "error", err)
		}
	}

	if err := uc.repo.UpdateText(ctx, recordID, editedText); err != nil {
		return fmt.Errorf("update record text: %w", err)
	}

	// Regeneration always re-enters at the analysis engine with the edited
	// text; the image is not re-processed.
	if err := uc.queue.PublishProcessTask(ctx, domain.ProcessTask{RecordID: recordID, TextOnly: true}); err != nil {
		return fmt.Errorf("publish process task: %w", err)
	}
	return nil
}
