package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// maxUploadBytes caps a single capture upload. Phone photos of paper
// documents stay well under this.
const maxUploadBytes = 20 << 20

func (rt *Router) uploadCapture(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	rec, err := rt.ingestUC.IngestImage(r.Context(), owner, fileHeader.Filename, file)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordCapture(rt.service, "image")
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (rt *Router) ingestText(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	var req struct {
		Text      string `json:"text"`
		PatientID *int64 `json:"patient_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rec, err := rt.ingestUC.IngestText(r.Context(), owner, req.Text, req.PatientID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordCapture(rt.service, "text")
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (rt *Router) listRecords(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	filter := domain.RecordFilter{
		TimeBucket:   strings.TrimSpace(r.URL.Query().Get("time")),
		DocumentType: strings.TrimSpace(r.URL.Query().Get("document_type")),
		Status:       domain.RecordStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
	}

	records, err := rt.records.ListByOwner(r.Context(), owner, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (rt *Router) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := rt.ownedRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) deleteRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := rt.ownedRecord(w, r)
	if !ok {
		return
	}
	if err := rt.records.Delete(r.Context(), rec.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (rt *Router) regenerateRecord(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var req struct {
		RawText string `json:"raw_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := rt.regenerateUC.Regenerate(r.Context(), owner, id, req.RawText); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": string(domain.StatusProcessing)})
}

func (rt *Router) completeRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := rt.ownedRecord(w, r)
	if !ok {
		return
	}
	if rec.Status != domain.StatusProcessed && rec.Status != domain.StatusError {
		writeError(w, http.StatusBadRequest, "record is not ready for review")
		return
	}

	terminal := rec.TerminalStatus()
	if err := rt.records.MarkTerminal(r.Context(), rec.ID, terminal); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": rec.ID, "status": string(terminal)})
}

func (rt *Router) linkPatient(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())
	rec, ok := rt.ownedRecord(w, r)
	if !ok {
		return
	}
	if rec.Kind != domain.KindConsultation {
		writeError(w, http.StatusBadRequest, "only consultations link to patients")
		return
	}

	var req struct {
		PatientID int64 `json:"patient_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	patient, err := rt.patients.GetByID(r.Context(), req.PatientID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if patient.Owner != owner {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}

	if err := rt.records.LinkPatient(r.Context(), rec.ID, patient.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": rec.ID, "patient_id": patient.ID})
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return 0, false
	}
	return id, true
}

// ownedRecord loads the record and enforces ownership. A foreign record
// reads as absent, not forbidden.
func (rt *Router) ownedRecord(w http.ResponseWriter, r *http.Request) (*domain.Record, bool) {
	id, ok := recordID(w, r)
	if !ok {
		return nil, false
	}

	rec, err := rt.records.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	if rec.Owner != usernameFromContext(r.Context()) {
		writeError(w, http.StatusNotFound, "record not found")
		return nil, false
	}
	return rec, true
}
