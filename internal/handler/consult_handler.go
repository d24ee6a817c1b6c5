package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"telemed/internal/pkg/auth/jwt"
	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/logx"
	"telemed/internal/pkg/randx"
	"telemed/internal/pkg/req"
	"telemed/internal/pkg/resp"
)

// HandleCreateConsultation sets up a new consultation room for the
// authenticated doctor and returns the patient join code.
func HandleCreateConsultation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireDoctor(w, r)
		if identity == nil {
			return
		}

		consultation, customErr := deps.Consultations.CreateConsultation(identity.ID, identity.Name)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"consultation": consultation,
		})
	}
}

type JoinConsultationInput struct {
	JoinCode    string `json:"joinCode"`
	DisplayName string `json:"displayName"`
}

// HandleJoinConsultation lets a patient enter a consultation with the join
// code the doctor shared. On success the patient receives a short-lived
// session token scoped to that single room; it is the identity used for both
// the chat socket and video token requests.
func HandleJoinConsultation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input JoinConsultationInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.DisplayName = strings.TrimSpace(input.DisplayName)
		if input.DisplayName == "" || utf8.RuneCountInString(input.DisplayName) > 60 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		consultation, customErr := deps.Consultations.JoinByCode(input.JoinCode)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		payload := &jwt.Payload{
			ID:   "patient-" + randx.RecordID(),
			Role: jwt.RolePatient,
			Name: input.DisplayName,
			Room: consultation.RoomID,
		}

		tokenString, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.PatientSessionExpiration)
		if err != nil {
			logx.Error(err, "failed to generate patient session token", "room_id", consultation.RoomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":      tokenString,
			"roomId":     consultation.RoomID,
			"doctorName": consultation.DoctorName,
			"patientId":  payload.ID,
		})
	}
}

// HandleGetConsultation returns the consultation metadata for a room the
// caller belongs to. Doctors see their own rooms; patients see the room their
// session is scoped to.
func HandleGetConsultation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID := strings.TrimSpace(r.URL.Query().Get("roomId"))
		consultation := deps.Consultations.GetConsultation(roomID)
		if consultation == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrConsultationNotFound))
			return
		}

		switch identity.Role {
		case jwt.RoleDoctor:
			if consultation.DoctorID != identity.ID {
				resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
				return
			}
		case jwt.RolePatient:
			if identity.Room != consultation.RoomID {
				resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
				return
			}
		default:
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		// The join code is for the doctor to hand out; patients never need it
		// back.
		out := map[string]any{
			"roomId":     consultation.RoomID,
			"doctorName": consultation.DoctorName,
			"createdAt":  consultation.CreatedAt,
		}
		if identity.Role == jwt.RoleDoctor {
			out["joinCode"] = consultation.JoinCode
		}

		resp.RespondSuccess(w, r, map[string]any{"consultation": out})
	}
}
