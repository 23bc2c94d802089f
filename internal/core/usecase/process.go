package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
)

// ProcessRecordUseCase drives one record through the pipeline: extraction,
// analysis, persistence, owner notification. Stages are strictly sequential
// per record; failures at any stage terminate at the error status without
// losing the user's original capture, and nothing is retried automatically.
type ProcessRecordUseCase struct {
	repo      ports.RecordRepository
	extractor *ExtractionRouter
	engine    *AnalysisEngine
	deriver   *DerivedEntityExtractor
	events    ports.EventBus
}

func NewProcessRecordUseCase(
	repo ports.RecordRepository,
	extractor *ExtractionRouter,
	engine *AnalysisEngine,
	deriver *DerivedEntityExtractor,
	events ports.EventBus,
) *ProcessRecordUseCase {
	return &ProcessRecordUseCase{
		repo:      repo,
		extractor: extractor,
		engine:    engine,
		deriver:   deriver,
		events:    events,
	}
}

// Process handles one scheduled task. It returns an error only for truly
// unexpected failures (database writes); extraction and analysis failures
// are persisted as an error status and do not propagate.
func (uc *ProcessRecordUseCase) Process(ctx context.Context, task domain.ProcessTask) error {
	rec, err := uc.repo.GetByID(ctx, task.RecordID)
	if err != nil {
		return fmt.Errorf("fetch record by id: %w", err)
	}

	if err := uc.repo.UpdateStatus(ctx, rec.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}
	uc.notify(ctx, rec.Owner, rec.ID, domain.StatusProcessing, "")

	if !task.TextOnly && rec.ImageBacked() {
		text, err := uc.extractor.Extract(ctx, rec)
		if err != nil {
			return uc.markError(ctx, rec, err.Error())
		}
		if err := uc.repo.UpdateText(ctx, rec.ID, text); err != nil {
			if failErr := uc.markError(ctx, rec, err.Error()); failErr != nil {
				return fmt.Errorf("save extracted text: %w; %v", err, failErr)
			}
			return fmt.Errorf("save extracted text: %w", err)
		}
		rec.RawText = text
	}

	result := uc.engine.Analyze(ctx, domain.ModeForKind(rec.Kind), rec.RawText)
	if !result.OK() {
		if err := uc.repo.SaveAnalysis(ctx, rec.ID, domain.StatusError, result.Payload, "", "", result.Message); err != nil {
			return fmt.Errorf("persist analysis failure: %w", err)
		}
		uc.notify(ctx, rec.Owner, rec.ID, domain.StatusError, result.Message)
		return nil
	}

	timeBucket, documentType := domain.PayloadMeta(result.Payload)
	if err := uc.repo.SaveAnalysis(ctx, rec.ID, domain.StatusProcessed, result.Payload, timeBucket, documentType, ""); err != nil {
		if failErr := uc.markError(ctx, rec, err.Error()); failErr != nil {
			return fmt.Errorf("persist analysis: %w; %v", err, failErr)
		}
		return fmt.Errorf("persist analysis: %w", err)
	}
	uc.notify(ctx, rec.Owner, rec.ID, domain.StatusProcessed, "")

	if rec.Kind == domain.KindConsultation {
		// Derived rows are a projection of an already-persisted payload;
		// losing them does not invalidate the processed record.
		if err := uc.deriver.Extract(ctx, rec, result.Payload); err != nil {
			slog.Warn("derived_entity_extraction_failed", "record_id", rec.ID, "error", err)
		}
	}

	return nil
}

func (uc *ProcessRecordUseCase) markError(ctx context.Context, rec *domain.Record, message string) error {
	err := uc.repo.SaveAnalysis(ctx, rec.ID, domain.StatusError, domain.UnavailablePayload(message), "", "", message)
	if err != nil {
		return fmt.Errorf("set status=error: %w", err)
	}
	uc.notify(ctx, rec.Owner, rec.ID, domain.StatusError, message)
	return nil
}

// notify is best-effort: a failed publish is logged and never fails the
// pipeline. Offline clients discover the final state by re-polling.
func (uc *ProcessRecordUseCase) notify(ctx context.Context, owner string, recordID int64, status domain.RecordStatus, errMessage string) {
	event := domain.StatusEvent{
		Owner:    owner,
		RecordID: recordID,
		Status:   status,
		Error:    errMessage,
	}
	if err := uc.events.PublishStatusEvent(ctx, event); err != nil {
		slog.Warn("status_event_publish_failed", "record_id", recordID, "status", status, "error", err)
	}
}
