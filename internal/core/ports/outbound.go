package ports

import (
	"context"
	"io"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// RecordRepository persists and reads record state. Every status transition
// writes (status, payload-or-text) atomically so concurrent readers never
// observe a status inconsistent with payload presence.
type RecordRepository interface {
	Create(ctx context.Context, rec *domain.Record) error
	GetByID(ctx context.Context, id int64) (*domain.Record, error)
	ListByOwner(ctx context.Context, owner string, filter domain.RecordFilter) ([]domain.Record, error)
	UpdateStatus(ctx context.Context, id int64, status domain.RecordStatus, errMessage string) error
	UpdateText(ctx context.Context, id int64, text string) error
	SaveAnalysis(ctx context.Context, id int64, status domain.RecordStatus, payload []byte, timeBucket, documentType, errMessage string) error
	LinkPatient(ctx context.Context, id int64, patientID int64) error
	MarkTerminal(ctx context.Context, id int64, status domain.RecordStatus) error
	Delete(ctx context.Context, id int64) error
}

// CorrectionStore is append-only; corrections feed few-shot exemplars.
type CorrectionStore interface {
	Save(ctx context.Context, c *domain.Correction) error
	RecentByOwner(ctx context.Context, owner string, limit int) ([]domain.Correction, error)
}

// DerivedEntityStore persists rows projected from validated consultation
// analyses.
type DerivedEntityStore interface {
	SavePrescriptions(ctx context.Context, rows []domain.Prescription) error
	SaveLabResults(ctx context.Context, rows []domain.LabResult) error
	ListPrescriptionsByPatient(ctx context.Context, patientID int64) ([]domain.Prescription, error)
	ListLabResultsByPatient(ctx context.Context, patientID int64) ([]domain.LabResult, error)
}

type PatientStore interface {
	Create(ctx context.Context, p *domain.Patient) error
	GetByID(ctx context.Context, id int64) (*domain.Patient, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Patient, error)
}

// SessionStore persists PIN-authenticated identities in the durable store.
type SessionStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	VerifyUser(ctx context.Context, username, pin string) (bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, username string) error
}

// SettingsStore persists the mutable inference configuration.
type SettingsStore interface {
	Get(ctx context.Context) (domain.AISettings, error)
	Update(ctx context.Context, settings domain.AISettings) error
}

// ObjectStorage stores captured images.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TaskQueue schedules one background processing task per capture and carries
// record status events to connected API processes.
type TaskQueue interface {
	PublishProcessTask(ctx context.Context, task domain.ProcessTask) error
	SubscribeProcessTasks(ctx context.Context, handler func(context.Context, domain.ProcessTask) error) error
}

// EventBus fans record state changes out to the owning user's live
// connections. Delivery is best-effort.
type EventBus interface {
	PublishStatusEvent(ctx context.Context, event domain.StatusEvent) error
	SubscribeStatusEvents(ctx context.Context, handler func(domain.StatusEvent)) error
}

// OCRFragment is one local OCR detection with its confidence in [0,1].
type OCRFragment struct {
	Text       string
	Confidence float64
}

// OCREngine runs local text recognition against a stored image.
type OCREngine interface {
	Recognize(ctx context.Context, image io.Reader) ([]OCRFragment, error)
}

// VisionTranscriber transcribes an image with a vision-capable model,
// optionally biased by prior corrected transcriptions.
type VisionTranscriber interface {
	Transcribe(ctx context.Context, image io.Reader, exemplars []domain.Correction) (string, error)
}

// AnalysisModel invokes the logic-capable model. GenerateJSON requests
// JSON-mode output where the backend supports it.
type AnalysisModel interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// TextLayerExtractor pulls an embedded text layer out of a PDF capture so
// scanned documents with real text skip OCR entirely.
type TextLayerExtractor interface {
	ExtractTextLayer(ctx context.Context, path string) (string, error)
}
