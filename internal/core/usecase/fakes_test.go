package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
)

type fakeRecordRepo struct {
	records map[int64]*domain.Record

	statusUpdates []domain.RecordStatus
	savedPayloads [][]byte
	savedStatus   []domain.RecordStatus
	savedBuckets  []string
	savedDocTypes []string
	savedMessages []string
	textUpdates   []string

	updateTextErr   error
	saveAnalysisErr error
}

func newFakeRecordRepo(records ...*domain.Record) *fakeRecordRepo {
	repo := &fakeRecordRepo{records: map[int64]*domain.Record{}}
	for _, rec := range records {
		repo.records[rec.ID] = rec
	}
	return repo
}

func (f *fakeRecordRepo) Create(_ context.Context, rec *domain.Record) error {
	rec.ID = int64(len(f.records) + 1)
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeRecordRepo) GetByID(_ context.Context, id int64) (*domain.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id=%d", id))
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeRecordRepo) ListByOwner(_ context.Context, owner string, _ domain.RecordFilter) ([]domain.Record, error) {
	var out []domain.Record
	for _, rec := range f.records {
		if rec.Owner == owner {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) UpdateStatus(_ context.Context, id int64, status domain.RecordStatus, _ string) error {
	f.statusUpdates = append(f.statusUpdates, status)
	if rec, ok := f.records[id]; ok {
		rec.Status = status
	}
	return nil
}

func (f *fakeRecordRepo) UpdateText(_ context.Context, id int64, text string) error {
	if f.updateTextErr != nil {
		return f.updateTextErr
	}
	f.textUpdates = append(f.textUpdates, text)
	if rec, ok := f.records[id]; ok {
		rec.RawText = text
	}
	return nil
}

func (f *fakeRecordRepo) SaveAnalysis(_ context.Context, id int64, status domain.RecordStatus, payload []byte, timeBucket, documentType, errMessage string) error {
	if f.saveAnalysisErr != nil {
		return f.saveAnalysisErr
	}
	f.savedStatus = append(f.savedStatus, status)
	f.savedPayloads = append(f.savedPayloads, payload)
	f.savedBuckets = append(f.savedBuckets, timeBucket)
	f.savedDocTypes = append(f.savedDocTypes, documentType)
	f.savedMessages = append(f.savedMessages, errMessage)
	if rec, ok := f.records[id]; ok {
		rec.Status = status
		rec.Analysis = payload
	}
	return nil
}

func (f *fakeRecordRepo) LinkPatient(_ context.Context, id int64, patientID int64) error {
	if rec, ok := f.records[id]; ok {
		rec.PatientID = &patientID
	}
	return nil
}

func (f *fakeRecordRepo) MarkTerminal(_ context.Context, id int64, status domain.RecordStatus) error {
	return f.UpdateStatus(context.Background(), id, status, "")
}

func (f *fakeRecordRepo) Delete(_ context.Context, id int64) error {
	delete(f.records, id)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	saveErr error
	openErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	return nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type fakeQueue struct {
	tasks      []domain.ProcessTask
	publishErr error
}

func (f *fakeQueue) PublishProcessTask(_ context.Context, task domain.ProcessTask) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeQueue) SubscribeProcessTasks(context.Context, func(context.Context, domain.ProcessTask) error) error {
	return nil
}

type fakeEventBus struct {
	events     []domain.StatusEvent
	publishErr error
}

func (f *fakeEventBus) PublishStatusEvent(_ context.Context, event domain.StatusEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventBus) SubscribeStatusEvents(context.Context, func(domain.StatusEvent)) error {
	return nil
}

type fakeOCR struct {
	fragments []ports.OCRFragment
	err       error
	calls     int
}

func (f *fakeOCR) Recognize(_ context.Context, _ io.Reader) ([]ports.OCRFragment, error) {
	f.calls++
	return f.fragments, f.err
}

type fakeVision struct {
	text      string
	err       error
	calls     int
	exemplars []domain.Correction
}

func (f *fakeVision) Transcribe(_ context.Context, _ io.Reader, exemplars []domain.Correction) (string, error) {
	f.calls++
	f.exemplars = exemplars
	return f.text, f.err
}

type fakeCorrections struct {
	saved   []domain.Correction
	recent  []domain.Correction
	listErr error
	saveErr error
}

func (f *fakeCorrections) Save(_ context.Context, c *domain.Correction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *c)
	return nil
}

func (f *fakeCorrections) RecentByOwner(_ context.Context, _ string, limit int) ([]domain.Correction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakePDFText struct {
	text  string
	err   error
	calls int
}

func (f *fakePDFText) ExtractTextLayer(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

// fakeModel returns queued responses in order; each entry is either an
// output string or an error.
type fakeModel struct {
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeModel) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	idx := len(f.prompts) - 1
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	var out string
	if idx < len(f.responses) {
		out = f.responses[idx]
	}
	return out, err
}

type fakeDerivedStore struct {
	prescriptions []domain.Prescription
	labResults    []domain.LabResult
	saveErr       error
}

func (f *fakeDerivedStore) SavePrescriptions(_ context.Context, rows []domain.Prescription) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.prescriptions = append(f.prescriptions, rows...)
	return nil
}

func (f *fakeDerivedStore) SaveLabResults(_ context.Context, rows []domain.LabResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.labResults = append(f.labResults, rows...)
	return nil
}

func (f *fakeDerivedStore) ListPrescriptionsByPatient(context.Context, int64) ([]domain.Prescription, error) {
	return f.prescriptions, nil
}

func (f *fakeDerivedStore) ListLabResultsByPatient(context.Context, int64) ([]domain.LabResult, error) {
	return f.labResults, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
