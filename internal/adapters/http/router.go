package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/betomay/papertoplan/internal/core/ports"
	"github.com/betomay/papertoplan/internal/core/usecase"
	"github.com/betomay/papertoplan/internal/observability/metrics"
)

// InferencePinger reports whether the configured inference host is
// reachable. Satisfied by the ollama client.
type InferencePinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	service string

	ingestUC     *usecase.IngestCaptureUseCase
	regenerateUC *usecase.RegenerateUseCase

	records  ports.RecordRepository
	patients ports.PatientStore
	derived  ports.DerivedEntityStore
	sessions ports.SessionStore
	settings ports.SettingsStore

	pinger InferencePinger
	hub    *EventHub

	metrics       *metrics.HTTPServerMetrics
	uploadLimiter *rate.Limiter
}

type RouterOptions struct {
	Service      string
	IngestUC     *usecase.IngestCaptureUseCase
	RegenerateUC *usecase.RegenerateUseCase
	Records      ports.RecordRepository
	Patients     ports.PatientStore
	Derived      ports.DerivedEntityStore
	Sessions     ports.SessionStore
	Settings     ports.SettingsStore
	Pinger       InferencePinger
	Hub          *EventHub
	Metrics      *metrics.HTTPServerMetrics

	// UploadsPerMinute bounds capture ingestion across all users. Zero
	// disables the limiter.
	UploadsPerMinute int
}

func NewRouter(opts RouterOptions) *Router {
	var limiter *rate.Limiter
	if opts.UploadsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.UploadsPerMinute)/60.0), opts.UploadsPerMinute)
	}
	return &Router{
		service:       opts.Service,
		ingestUC:      opts.IngestUC,
		regenerateUC:  opts.RegenerateUC,
		records:       opts.Records,
		patients:      opts.Patients,
		derived:       opts.Derived,
		sessions:      opts.Sessions,
		settings:      opts.Settings,
		pinger:        opts.Pinger,
		hub:           opts.Hub,
		metrics:       opts.Metrics,
		uploadLimiter: limiter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /api/login", rt.login)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/notes/text", rt.ingestText)
	api.HandleFunc("GET /api/notes", rt.listRecords)
	api.HandleFunc("GET /api/notes/{id}", rt.getRecord)
	api.HandleFunc("DELETE /api/notes/{id}", rt.deleteRecord)
	api.HandleFunc("POST /api/notes/{id}/regenerate", rt.regenerateRecord)
	api.HandleFunc("POST /api/notes/{id}/complete", rt.completeRecord)
	api.HandleFunc("POST /api/notes/{id}/patient", rt.linkPatient)
	api.HandleFunc("GET /api/patients", rt.listPatients)
	api.HandleFunc("POST /api/patients", rt.createPatient)
	api.HandleFunc("GET /api/patients/{id}", rt.getPatient)
	api.HandleFunc("GET /api/stats", rt.stats)
	api.HandleFunc("GET /api/stats/export", rt.exportStats)
	api.HandleFunc("GET /api/users", rt.listUsers)
	api.HandleFunc("POST /api/users", rt.createUser)
	api.HandleFunc("DELETE /api/users/{username}", rt.deleteUser)
	api.HandleFunc("GET /api/config", rt.getConfig)
	api.HandleFunc("PUT /api/config", rt.updateConfig)
	api.HandleFunc("GET /api/config/test", rt.testConfig)
	api.HandleFunc("GET /api/events", rt.streamEvents)

	upload := http.Handler(http.HandlerFunc(rt.uploadCapture))
	if rt.uploadLimiter != nil {
		upload = uploadRateLimitMiddleware(rt.uploadLimiter, upload)
	}
	api.Handle("POST /api/upload", upload)

	mux.Handle("/api/", authMiddleware(rt.sessions, api))

	handler := http.Handler(mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		PIN      string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Username == "" || req.PIN == "" {
		writeError(w, http.StatusBadRequest, "username and pin are required")
		return
	}

	ok, err := rt.sessions.VerifyUser(r.Context(), req.Username, req.PIN)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), err.Error())
}
