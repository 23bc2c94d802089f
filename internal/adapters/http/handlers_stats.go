package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/betomay/papertoplan/internal/core/domain"
)

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	records, err := rt.records.ListByOwner(r.Context(), owner, domain.RecordFilter{})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildStats(records))
}

func buildStats(records []domain.Record) domain.Stats {
	stats := domain.Stats{
		Total:     len(records),
		ByStatus:  map[string]int{},
		ByBucket:  map[string]int{},
		ByDocType: map[string]int{},
	}

	var scoreSum float64
	var scoreCount int
	for i := range records {
		rec := &records[i]
		stats.ByStatus[string(rec.Status)]++
		if rec.TimeBucket != "" {
			stats.ByBucket[rec.TimeBucket]++
		}
		if rec.DocumentType != "" {
			stats.ByDocType[rec.DocumentType]++
		}
		if stats.LastUpload == nil || rec.CreatedAt.After(*stats.LastUpload) {
			t := rec.CreatedAt
			stats.LastUpload = &t
		}
		if score, ok := analysisScore(rec.Analysis); ok {
			scoreSum += score
			scoreCount++
		}
	}
	if scoreCount > 0 {
		stats.AvgScore = scoreSum / float64(scoreCount)
	}
	return stats
}

// analysisScore reads whichever score the payload carries. Project payloads
// hold feasibility_score, clinical payloads confidence_score.
func analysisScore(payload json.RawMessage) (float64, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	var probe struct {
		FeasibilityScore *float64 `json:"feasibility_score"`
		ConfidenceScore  *float64 `json:"confidence_score"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0, false
	}
	if probe.FeasibilityScore != nil {
		return *probe.FeasibilityScore, true
	}
	if probe.ConfidenceScore != nil {
		return *probe.ConfidenceScore, true
	}
	return 0, false
}

func (rt *Router) exportStats(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	records, err := rt.records.ListByOwner(r.Context(), owner, domain.RecordFilter{})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	book := excelize.NewFile()
	defer func() {
		if err := book.Close(); err != nil {
			slog.Warn("close workbook", "error", err)
		}
	}()

	const sheet = "Records"
	index, err := book.NewSheet(sheet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "build workbook")
		return
	}
	book.SetActiveSheet(index)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		slog.Warn("drop default sheet", "error", err)
	}

	header := []any{"ID", "Kind", "Status", "Document Type", "Time Bucket", "Score", "Created", "Text"}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		writeError(w, http.StatusInternalServerError, "build workbook")
		return
	}

	for i := range records {
		rec := &records[i]
		score := ""
		if value, ok := analysisScore(rec.Analysis); ok {
			score = fmt.Sprintf("%.1f", value)
		}
		row := []any{
			rec.ID,
			string(rec.Kind),
			string(rec.Status),
			rec.DocumentType,
			rec.TimeBucket,
			score,
			rec.CreatedAt.Format(time.RFC3339),
			rec.RawText,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			writeError(w, http.StatusInternalServerError, "build workbook")
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=records-%s.xlsx", time.Now().UTC().Format("2006-01-02")))
	if err := book.Write(w); err != nil {
		slog.Warn("write workbook", "error", err, "owner", owner)
	}
}
