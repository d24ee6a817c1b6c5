package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"telemed/internal/app/db"
	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/logx"
	"telemed/internal/pkg/req"
	"telemed/internal/pkg/resp"
)

type PrescriptionMedicineInput struct {
	MedicineID      string `json:"medicineId"`
	Dosage          string `json:"dosage"`
	FrequencyCode   string `json:"frequencyCode"`
	FrequencySymbol string `json:"frequencySymbol"`
	DurationDays    int    `json:"durationDays"`
	MealTiming      string `json:"mealTiming"`
}

type CreatePrescriptionInput struct {
	PatientName   string                      `json:"patientName"`
	PatientAge    int                         `json:"patientAge"`
	PatientGender string                      `json:"patientGender"`
	Diagnosis     string                      `json:"diagnosis"`
	Instructions  string                      `json:"instructions"`
	FollowUpDate  string                      `json:"followUpDate"`
	Medicines     []PrescriptionMedicineInput `json:"medicines"`
}

func (in *CreatePrescriptionInput) validate() *errs.CustomError {
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.Diagnosis = strings.TrimSpace(in.Diagnosis)

	if in.PatientName == "" || in.Diagnosis == "" {
		return errs.NewError(errs.ErrPrescriptionInvalid)
	}
	if in.PatientAge <= 0 || in.PatientAge > 150 {
		return errs.NewError(errs.ErrPrescriptionInvalid)
	}
	if len(in.Medicines) == 0 {
		return errs.NewError(errs.ErrPrescriptionInvalid)
	}
	for _, m := range in.Medicines {
		if m.MedicineID == "" || strings.TrimSpace(m.Dosage) == "" ||
			strings.TrimSpace(m.FrequencyCode) == "" || m.DurationDays <= 0 {
			return errs.NewError(errs.ErrPrescriptionInvalid)
		}
	}
	return nil
}

func prescriptionResponse(p db.Prescription, lines []db.PrescriptionMedicine) map[string]any {
	followUp := ""
	if p.FollowUpDate != nil {
		followUp = p.FollowUpDate.Format("2006-01-02")
	}

	out := map[string]any{
		"id":            p.ID,
		"doctorId":      p.DoctorID,
		"patientName":   p.PatientName,
		"patientAge":    p.PatientAge,
		"patientGender": p.PatientGender,
		"diagnosis":     p.Diagnosis,
		"instructions":  p.Instructions,
		"followUpDate":  followUp,
		"createdAt":     p.CreatedAt.Format(time.RFC3339),
	}

	if lines != nil {
		meds := make([]map[string]any, 0, len(lines))
		for _, l := range lines {
			meds = append(meds, map[string]any{
				"medicineId":      l.MedicineID,
				"medicineName":    l.MedicineName,
				"dosage":          l.Dosage,
				"frequencyCode":   l.FrequencyCode,
				"frequencySymbol": l.FrequencySymbol,
				"durationDays":    l.DurationDays,
				"mealTiming":      l.MealTiming,
			})
		}
		out["medicines"] = meds
	}

	return out
}

// HandleCreatePrescription records a new prescription with its medicine lines.
func HandleCreatePrescription(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireDoctor(w, r)
		if identity == nil {
			return
		}

		var input CreatePrescriptionInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr := input.validate(); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var followUp *time.Time
		if input.FollowUpDate != "" {
			parsed, err := time.Parse("2006-01-02", input.FollowUpDate)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrPrescriptionInvalid))
				return
			}
			followUp = &parsed
		}

		params := db.CreatePrescriptionParams{
			DoctorID:      identity.ID,
			PatientName:   input.PatientName,
			PatientAge:    input.PatientAge,
			PatientGender: strings.TrimSpace(input.PatientGender),
			Diagnosis:     input.Diagnosis,
			Instructions:  strings.TrimSpace(input.Instructions),
			FollowUpDate:  followUp,
		}
		for _, m := range input.Medicines {
			params.Medicines = append(params.Medicines, db.PrescriptionMedicineParams{
				MedicineID:      m.MedicineID,
				Dosage:          strings.TrimSpace(m.Dosage),
				FrequencyCode:   strings.TrimSpace(m.FrequencyCode),
				FrequencySymbol: strings.TrimSpace(m.FrequencySymbol),
				DurationDays:    m.DurationDays,
				MealTiming:      strings.TrimSpace(m.MealTiming),
			})
		}

		prescription, err := deps.DB.CreatePrescription(r.Context(), params)
		if err != nil {
			logx.Error(err, "failed to create prescription", "doctor_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"prescription": prescriptionResponse(prescription, nil),
		})
	}
}

// HandleGetPrescription returns one prescription with its medicine lines.
// Doctors can only read their own prescriptions.
func HandleGetPrescription(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireDoctor(w, r)
		if identity == nil {
			return
		}

		id := chi.URLParam(r, "id")
		if _, err := uuid.Parse(id); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrPrescriptionNotFound))
			return
		}

		prescription, lines, err := deps.DB.GetPrescription(r.Context(), id)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrPrescriptionNotFound))
				return
			}
			logx.Error(err, "failed to load prescription", "prescription_id", id)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if prescription.DoctorID != identity.ID {
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"prescription": prescriptionResponse(prescription, lines),
		})
	}
}

// HandleListPrescriptions returns the authenticated doctor's prescriptions,
// newest first.
func HandleListPrescriptions(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireDoctor(w, r)
		if identity == nil {
			return
		}

		prescriptions, err := deps.DB.ListPrescriptionsByDoctor(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "failed to list prescriptions", "doctor_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		out := make([]map[string]any, 0, len(prescriptions))
		for _, p := range prescriptions {
			out = append(out, prescriptionResponse(p, nil))
		}

		resp.RespondSuccess(w, r, map[string]any{
			"prescriptions": out,
		})
	}
}
