package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/usecase"
)

type stubRecords struct {
	mu       sync.Mutex
	nextID   int64
	records  map[int64]*domain.Record
	deleted  []int64
	terminal map[int64]domain.RecordStatus
	linked   map[int64]int64
}

func newStubRecords() *stubRecords {
	return &stubRecords{
		records:  map[int64]*domain.Record{},
		terminal: map[int64]domain.RecordStatus{},
		linked:   map[int64]int64{},
	}
}

func (s *stubRecords) add(rec domain.Record) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	s.records[rec.ID] = &rec
	return rec.ID
}

func (s *stubRecords) Create(_ context.Context, rec *domain.Record) error {
	rec.ID = s.add(*rec)
	return nil
}

func (s *stubRecords) GetByID(_ context.Context, id int64) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id=%d", id))
	}
	clone := *rec
	return &clone, nil
}

func (s *stubRecords) ListByOwner(_ context.Context, owner string, filter domain.RecordFilter) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Record
	for _, rec := range s.records {
		if rec.Owner != owner {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.TimeBucket != "" && rec.TimeBucket != filter.TimeBucket {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *stubRecords) UpdateStatus(_ context.Context, id int64, status domain.RecordStatus, errMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "update status", fmt.Errorf("id=%d", id))
	}
	rec.Status = status
	rec.ErrorMessage = errMessage
	return nil
}

func (s *stubRecords) UpdateText(_ context.Context, id int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "update text", fmt.Errorf("id=%d", id))
	}
	rec.RawText = text
	return nil
}

func (s *stubRecords) SaveAnalysis(_ context.Context, id int64, status domain.RecordStatus, payload []byte, timeBucket, documentType, errMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "save analysis", fmt.Errorf("id=%d", id))
	}
	rec.Status = status
	rec.Analysis = payload
	rec.TimeBucket = timeBucket
	rec.DocumentType = documentType
	rec.ErrorMessage = errMessage
	return nil
}

func (s *stubRecords) LinkPatient(_ context.Context, id, patientID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked[id] = patientID
	return nil
}

func (s *stubRecords) MarkTerminal(_ context.Context, id int64, status domain.RecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "mark terminal", fmt.Errorf("id=%d", id))
	}
	rec.Status = status
	s.terminal[id] = status
	return nil
}

func (s *stubRecords) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "delete record", fmt.Errorf("id=%d", id))
	}
	delete(s.records, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubCorrections struct {
	saved []domain.Correction
}

func (s *stubCorrections) Save(_ context.Context, c *domain.Correction) error {
	s.saved = append(s.saved, *c)
	return nil
}

func (s *stubCorrections) RecentByOwner(context.Context, string, int) ([]domain.Correction, error) {
	return nil, nil
}

type stubPatients struct {
	patients map[int64]*domain.Patient
	nextID   int64
}

func newStubPatients() *stubPatients {
	return &stubPatients{patients: map[int64]*domain.Patient{}}
}

func (s *stubPatients) Create(_ context.Context, p *domain.Patient) error {
	s.nextID++
	p.ID = s.nextID
	clone := *p
	s.patients[p.ID] = &clone
	return nil
}

func (s *stubPatients) GetByID(_ context.Context, id int64) (*domain.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrPatientNotFound, "get patient", fmt.Errorf("id=%d", id))
	}
	clone := *p
	return &clone, nil
}

func (s *stubPatients) ListByOwner(_ context.Context, owner string) ([]domain.Patient, error) {
	var out []domain.Patient
	for _, p := range s.patients {
		if p.Owner == owner {
			out = append(out, *p)
		}
	}
	return out, nil
}

type stubDerived struct {
	prescriptions map[int64][]domain.Prescription
	labResults    map[int64][]domain.LabResult
}

func newStubDerived() *stubDerived {
	return &stubDerived{
		prescriptions: map[int64][]domain.Prescription{},
		labResults:    map[int64][]domain.LabResult{},
	}
}

func (s *stubDerived) SavePrescriptions(_ context.Context, rows []domain.Prescription) error {
	for _, row := range rows {
		s.prescriptions[row.PatientID] = append(s.prescriptions[row.PatientID], row)
	}
	return nil
}

func (s *stubDerived) SaveLabResults(_ context.Context, rows []domain.LabResult) error {
	for _, row := range rows {
		s.labResults[row.PatientID] = append(s.labResults[row.PatientID], row)
	}
	return nil
}

func (s *stubDerived) ListPrescriptionsByPatient(_ context.Context, patientID int64) ([]domain.Prescription, error) {
	return s.prescriptions[patientID], nil
}

func (s *stubDerived) ListLabResultsByPatient(_ context.Context, patientID int64) ([]domain.LabResult, error) {
	return s.labResults[patientID], nil
}

type stubSessions struct {
	users   map[string]string
	deleted []string
}

func newStubSessions(users map[string]string) *stubSessions {
	if users == nil {
		users = map[string]string{}
	}
	return &stubSessions{users: users}
}

func (s *stubSessions) CreateUser(_ context.Context, user *domain.User) error {
	s.users[user.Username] = user.PIN
	return nil
}

func (s *stubSessions) VerifyUser(_ context.Context, username, pin string) (bool, error) {
	stored, ok := s.users[username]
	return ok && stored == pin, nil
}

func (s *stubSessions) ListUsers(context.Context) ([]domain.User, error) {
	var out []domain.User
	for name, pin := range s.users {
		out = append(out, domain.User{Username: name, PIN: pin})
	}
	return out, nil
}

func (s *stubSessions) DeleteUser(_ context.Context, username string) error {
	if _, ok := s.users[username]; !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "delete user", fmt.Errorf("username=%s", username))
	}
	delete(s.users, username)
	s.deleted = append(s.deleted, username)
	return nil
}

type stubSettings struct {
	settings domain.AISettings
	updated  []domain.AISettings
}

func (s *stubSettings) Get(context.Context) (domain.AISettings, error) {
	return s.settings, nil
}

func (s *stubSettings) Update(_ context.Context, settings domain.AISettings) error {
	s.settings = settings
	s.updated = append(s.updated, settings)
	return nil
}

type stubStorage struct {
	objects map[string][]byte
}

func newStubStorage() *stubStorage {
	return &stubStorage{objects: map[string][]byte{}}
}

func (s *stubStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.objects[key] = raw
	return nil
}

func (s *stubStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type stubQueue struct {
	tasks []domain.ProcessTask
}

func (s *stubQueue) PublishProcessTask(_ context.Context, task domain.ProcessTask) error {
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *stubQueue) SubscribeProcessTasks(context.Context, func(context.Context, domain.ProcessTask) error) error {
	return nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error { return s.err }

type testEnv struct {
	router   *Router
	records  *stubRecords
	patients *stubPatients
	derived  *stubDerived
	sessions *stubSessions
	settings *stubSettings
	storage  *stubStorage
	queue    *stubQueue
	pinger   *stubPinger
	hub      *EventHub
}

func newTestEnv(t *testing.T, kind domain.RecordKind) *testEnv {
	t.Helper()

	env := &testEnv{
		records:  newStubRecords(),
		patients: newStubPatients(),
		derived:  newStubDerived(),
		sessions: newStubSessions(map[string]string{"ana": "1234"}),
		settings: &stubSettings{settings: domain.DefaultAISettings()},
		storage:  newStubStorage(),
		queue:    &stubQueue{},
		pinger:   &stubPinger{},
		hub:      NewEventHub(),
	}

	env.router = NewRouter(RouterOptions{
		Service:      "api",
		IngestUC:     usecase.NewIngestCaptureUseCase(env.records, env.storage, env.queue, kind),
		RegenerateUC: usecase.NewRegenerateUseCase(env.records, &stubCorrections{}, env.queue),
		Records:      env.records,
		Patients:     env.patients,
		Derived:      env.derived,
		Sessions:     env.sessions,
		Settings:     env.settings,
		Pinger:       env.pinger,
		Hub:          env.hub,
	})
	return env
}
