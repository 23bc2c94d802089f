package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
)

// DerivedEntityExtractor projects prescription and lab-result rows out of a
// validated consultation payload. It runs only when the consultation is
// linked to a patient; without a link the structured payload remains the
// only durable record.
type DerivedEntityExtractor struct {
	store ports.DerivedEntityStore
}

func NewDerivedEntityExtractor(store ports.DerivedEntityStore) *DerivedEntityExtractor {
	return &DerivedEntityExtractor{store: store}
}

func (d *DerivedEntityExtractor) Extract(ctx context.Context, rec *domain.Record, payload []byte) error {
	if rec.PatientID == nil {
		return nil
	}

	var analysis domain.ClinicalAnalysis
	if err := json.Unmarshal(payload, &analysis); err != nil {
		return fmt.Errorf("decode clinical payload: %w", err)
	}

	now := time.Now().UTC()

	prescriptions := make([]domain.Prescription, 0, len(analysis.Plan.Medications))
	for _, med := range analysis.Plan.Medications {
		if med.DrugName == "" && med.Dose == "" {
			continue
		}
		prescriptions = append(prescriptions, domain.Prescription{
			RecordID:     rec.ID,
			PatientID:    *rec.PatientID,
			DrugName:     med.DrugName,
			Dose:         med.Dose,
			Frequency:    med.Frequency,
			Duration:     med.Duration,
			Instructions: med.Instructions,
			CreatedAt:    now,
		})
	}
	if len(prescriptions) > 0 {
		if err := d.store.SavePrescriptions(ctx, prescriptions); err != nil {
			return fmt.Errorf("save prescriptions: %w", err)
		}
	}

	labs := make([]domain.LabResult, 0, len(analysis.LabValues))
	for _, lab := range analysis.LabValues {
		if lab.Name == "" && lab.Value == "" {
			continue
		}
		abnormal := 0
		if lab.IsAbnormal {
			abnormal = 1
		}
		labs = append(labs, domain.LabResult{
			RecordID:       rec.ID,
			PatientID:      *rec.PatientID,
			Name:           lab.Name,
			Value:          lab.Value,
			Unit:           lab.Unit,
			ReferenceRange: lab.ReferenceRange,
			IsAbnormal:     abnormal,
			CreatedAt:      now,
		})
	}
	if len(labs) > 0 {
		if err := d.store.SaveLabResults(ctx, labs); err != nil {
			return fmt.Errorf("save lab results: %w", err)
		}
	}

	return nil
}
