package bootstrap

import (
	"context"
	"fmt"

	"github.com/betomay/papertoplan/internal/config"
	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
	"github.com/betomay/papertoplan/internal/core/usecase"
	"github.com/betomay/papertoplan/internal/infrastructure/extractor/pdftext"
	"github.com/betomay/papertoplan/internal/infrastructure/llm/ollama"
	"github.com/betomay/papertoplan/internal/infrastructure/ocr/tesseract"
	natsqueue "github.com/betomay/papertoplan/internal/infrastructure/queue/nats"
	"github.com/betomay/papertoplan/internal/infrastructure/repository/postgres"
	"github.com/betomay/papertoplan/internal/infrastructure/resilience"
	"github.com/betomay/papertoplan/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config
	Kind   domain.RecordKind

	Queue *natsqueue.Queue

	Records     ports.RecordRepository
	Corrections ports.CorrectionStore
	Derived     ports.DerivedEntityStore
	Patients    ports.PatientStore
	Sessions    ports.SessionStore
	Settings    ports.SettingsStore

	Ollama *ollama.Client

	IngestUC     *usecase.IngestCaptureUseCase
	RegenerateUC *usecase.RegenerateUseCase
	ProcessUC    *usecase.ProcessRecordUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	records := postgres.NewRecordRepository(db)
	if err := records.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	corrections := postgres.NewCorrectionRepository(db)
	derived := postgres.NewDerivedEntityRepository(db)
	patients := postgres.NewPatientRepository(db)
	sessions := postgres.NewSessionRepository(db)
	settingsStore := postgres.NewSettingsRepository(db)

	settings, err := settingsStore.Get(ctx)
	if err != nil {
		if !domain.IsKind(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("load ai settings: %w", err)
		}
		settings = domain.AISettings{
			Host:        cfg.OllamaURL,
			LogicModel:  cfg.OllamaLogicModel,
			VisionModel: cfg.OllamaVisionModel,
		}
		if err := settingsStore.Update(ctx, settings); err != nil {
			return nil, fmt.Errorf("seed ai settings: %w", err)
		}
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init capture storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSTaskSubject, cfg.NATSEventSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init task queue: %w", err)
	}

	ollamaClient := ollama.New(settings.Host, settings.LogicModel, settings.VisionModel, executor)
	transcriber := ollama.NewTranscriber(ollamaClient, storage)
	ocrEngine := tesseract.New(cfg.OCRLanguages...)
	pdfText := pdftext.New(storage)

	kind := domain.KindNote
	if cfg.AppMode == "consultation" {
		kind = domain.KindConsultation
	}

	extractor := usecase.NewExtractionRouter(storage, ocrEngine, transcriber, corrections, pdfText)
	engine := usecase.NewAnalysisEngine(ollamaClient)
	deriver := usecase.NewDerivedEntityExtractor(derived)

	ingestUC := usecase.NewIngestCaptureUseCase(records, storage, queue, kind)
	regenerateUC := usecase.NewRegenerateUseCase(records, corrections, queue)
	processUC := usecase.NewProcessRecordUseCase(records, extractor, engine, deriver, queue)

	return &App{
		Config: cfg,
		Kind:   kind,

		Queue: queue,

		Records:     records,
		Corrections: corrections,
		Derived:     derived,
		Patients:    patients,
		Sessions:    sessions,
		Settings:    settingsStore,

		Ollama: ollamaClient,

		IngestUC:     ingestUC,
		RegenerateUC: regenerateUC,
		ProcessUC:    processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
