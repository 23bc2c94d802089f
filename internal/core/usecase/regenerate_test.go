package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/betomay/papertoplan/internal/core/domain"
)

func TestRegenerateImageBackedSavesCorrection(t *testing.T) {
	rec := &domain.Record{ID: 8, Owner: "ana", Kind: domain.KindNote, Status: domain.StatusProcessed, ImagePath: "cap.png"}
	repo := newFakeRecordRepo(rec)
	corrections := &fakeCorrections{}
	queue := &fakeQueue{}

	uc := NewRegenerateUseCase(repo, corrections, queue)
	if err := uc.Regenerate(context.Background(), "ana", 8, "texto corregido"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(corrections.saved) != 1 {
		t.Fatalf("expected one saved correction, got %d", len(corrections.saved))
	}
	saved := corrections.saved[0]
	if saved.ImagePath != "cap.png" || saved.CorrectedText != "texto corregido" || saved.Owner != "ana" {
		t.Fatalf("unexpected correction %+v", saved)
	}

	if len(repo.textUpdates) != 1 || repo.textUpdates[0] != "texto corregido" {
		t.Fatalf("expected text update, got %v", repo.textUpdates)
	}
	if len(queue.tasks) != 1 || !queue.tasks[0].TextOnly {
		t.Fatalf("regeneration must schedule a text-only task, got %+v", queue.tasks)
	}
}

func TestRegenerateTextRecordSkipsCorrection(t *testing.T) {
	rec := &domain.Record{ID: 2, Owner: "ana", Kind: domain.KindNote, Status: domain.StatusError}
	repo := newFakeRecordRepo(rec)
	corrections := &fakeCorrections{}

	uc := NewRegenerateUseCase(repo, corrections, &fakeQueue{})
	if err := uc.Regenerate(context.Background(), "ana", 2, "nuevo texto"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corrections.saved) != 0 {
		t.Fatalf("text records must not produce corrections, got %d", len(corrections.saved))
	}
}

func TestRegenerateForeignRecordReadsAsMissing(t *testing.T) {
	rec := &domain.Record{ID: 2, Owner: "benito", Status: domain.StatusProcessed}
	uc := NewRegenerateUseCase(newFakeRecordRepo(rec), &fakeCorrections{}, &fakeQueue{})

	err := uc.Regenerate(context.Background(), "ana", 2, "x")
	if !domain.IsKind(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected not found for foreign record, got %v", err)
	}
}

func TestRegenerateRejectsInFlightRecord(t *testing.T) {
	for _, status := range []domain.RecordStatus{domain.StatusPending, domain.StatusProcessing} {
		rec := &domain.Record{ID: 2, Owner: "ana", Status: status}
		uc := NewRegenerateUseCase(newFakeRecordRepo(rec), &fakeCorrections{}, &fakeQueue{})

		err := uc.Regenerate(context.Background(), "ana", 2, "x")
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("status %s: expected invalid input, got %v", status, err)
		}
	}
}

func TestRegenerateCorrectionSaveFailureDoesNotBlock(t *testing.T) {
	rec := &domain.Record{ID: 8, Owner: "ana", Status: domain.StatusProcessed, ImagePath: "cap.png"}
	repo := newFakeRecordRepo(rec)
	corrections := &fakeCorrections{saveErr: errors.New("db down")}
	queue := &fakeQueue{}

	uc := NewRegenerateUseCase(repo, corrections, queue)
	if err := uc.Regenerate(context.Background(), "ana", 8, "texto"); err != nil {
		t.Fatalf("correction failure must not block regeneration: %v", err)
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected task published, got %d", len(queue.tasks))
	}
}

func TestRegenerateFromReviewedRecord(t *testing.T) {
	rec := &domain.Record{ID: 4, Owner: "dra", Kind: domain.KindConsultation, Status: domain.StatusReviewed, ImagePath: "c.jpg"}
	queue := &fakeQueue{}
	uc := NewRegenerateUseCase(newFakeRecordRepo(rec), &fakeCorrections{}, queue)

	if err := uc.Regenerate(context.Background(), "dra", 4, "nota corregida"); err != nil {
		t.Fatalf("reviewed records must be regenerable: %v", err)
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected task published")
	}
}
