package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/betomay/papertoplan/internal/core/domain"
)

func (rt *Router) createPatient(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	var req struct {
		Name      string `json:"name"`
		BirthDate string `json:"birth_date"`
		Sex       string `json:"sex"`
		Notes     string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "patient name is required")
		return
	}

	patient := &domain.Patient{
		Owner:     owner,
		Name:      strings.TrimSpace(req.Name),
		BirthDate: req.BirthDate,
		Sex:       req.Sex,
		Notes:     req.Notes,
		CreatedAt: time.Now().UTC(),
	}
	if err := rt.patients.Create(r.Context(), patient); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (rt *Router) listPatients(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	patients, err := rt.patients.ListByOwner(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if patients == nil {
		patients = []domain.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

// getPatient returns the patient together with the rows projected out of
// their consultations.
func (rt *Router) getPatient(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	patient, err := rt.patients.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if patient.Owner != owner {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}

	prescriptions, err := rt.derived.ListPrescriptionsByPatient(r.Context(), patient.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	labResults, err := rt.derived.ListLabResultsByPatient(r.Context(), patient.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if prescriptions == nil {
		prescriptions = []domain.Prescription{}
	}
	if labResults == nil {
		labResults = []domain.LabResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patient":       patient,
		"prescriptions": prescriptions,
		"lab_results":   labResults,
	})
}
