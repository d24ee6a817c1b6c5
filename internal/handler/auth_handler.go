/*
Package handler provides the HTTP handlers and routing setup for the telemed server.

This file implements doctor account management: registration, login, and
password changes. Doctors are the only registered principals; patients enter
through consultation join codes and never hold accounts.
*/
package handler

import (
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"telemed/internal/app/db"
	"telemed/internal/pkg/auth/jwt"
	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/logx"
	"telemed/internal/pkg/req"
	"telemed/internal/pkg/resp"

	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validPassword(password string) bool {
	n := utf8.RuneCountInString(password)
	return n >= 8 && n <= 72
}

// doctorResponse is the doctor profile shape returned by auth and profile
// endpoints.
func doctorResponse(d db.Doctor, avatarURL string) map[string]any {
	lastLogin := ""
	if d.LastLoginAt != nil {
		lastLogin = d.LastLoginAt.Format(time.RFC3339)
	}

	return map[string]any{
		"id":             d.ID,
		"email":          d.Email,
		"fullName":       d.FullName,
		"medicalLicense": d.MedicalLicense,
		"specialization": d.Specialization,
		"clinicName":     d.ClinicName,
		"phone":          d.Phone,
		"avatarUrl":      avatarURL,
		"lastLoginAt":    lastLogin,
	}
}

func issueDoctorToken(deps *AppDeps, d db.Doctor) (string, error) {
	payload := &jwt.Payload{
		ID:    d.ID,
		Role:  jwt.RoleDoctor,
		Name:  d.FullName,
		Email: d.Email,
	}
	return jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.DoctorSessionExpiration)
}

type RegisterInput struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"fullName"`
	MedicalLicense string `json:"medicalLicense"`
}

// HandleRegister creates a new doctor account and issues a session token.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Email = strings.ToLower(strings.TrimSpace(input.Email))
		input.FullName = strings.TrimSpace(input.FullName)
		input.MedicalLicense = strings.TrimSpace(input.MedicalLicense)

		if !emailRegex.MatchString(input.Email) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}
		if !validPassword(input.Password) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}
		if input.FullName == "" || input.MedicalLicense == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		doctor, err := deps.DB.CreateDoctor(r.Context(), db.CreateDoctorParams{
			Email:          input.Email,
			PasswordHash:   string(hashedPassword),
			FullName:       input.FullName,
			MedicalLicense: input.MedicalLicense,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("registration conflict: email already exists", "email", input.Email)
				resp.RespondError(w, r, errs.NewError(errs.ErrDoctorAlreadyExists))
				return
			}

			logx.Error(err, "failed to create doctor account")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if err := deps.DB.UpdateLastLogin(r.Context(), doctor.ID); err != nil {
			logx.Error(err, "register: failed to update last_login_at", "doctor_id", doctor.ID)
		}

		tokenString, err := issueDoctorToken(deps, doctor)
		if err != nil {
			logx.Error(err, "failed to generate token after registration")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":  tokenString,
			"doctor": doctorResponse(doctor, ""),
		})
	}
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies doctor credentials and issues a session token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Email = strings.ToLower(strings.TrimSpace(input.Email))

		doctor, err := deps.DB.GetDoctorByEmail(r.Context(), input.Email)
		if err != nil {
			logx.Warn("login: doctor fetch failed", "email", input.Email)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(doctor.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "email", input.Email)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := deps.DB.UpdateLastLogin(r.Context(), doctor.ID); err != nil {
			logx.Error(err, "login: failed to update last_login_at", "doctor_id", doctor.ID)
		}

		tokenString, err := issueDoctorToken(deps, doctor)
		if err != nil {
			logx.Error(err, "failed to generate token after login")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		avatarURL := presignAvatarIfSet(r, deps, doctor.AvatarKey)

		resp.RespondSuccess(w, r, map[string]any{
			"token":  tokenString,
			"doctor": doctorResponse(doctor, avatarURL),
		})
	}
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// HandleChangePassword updates the authenticated doctor's password.
func HandleChangePassword(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireDoctor(w, r)
		if identity == nil {
			return
		}

		var input ChangePasswordInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !validPassword(input.NewPassword) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		doctor, err := deps.DB.GetDoctorByID(r.Context(), identity.ID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrDoctorNotFound))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(doctor.PasswordHash), []byte(input.OldPassword)); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrOldPasswordInvalid))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if err := deps.DB.UpdateDoctorPassword(r.Context(), doctor.ID, string(hashedPassword)); err != nil {
			logx.Error(err, "failed to update password", "doctor_id", doctor.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"changed": true})
	}
}

// requireDoctor extracts the identity and rejects the request unless it is an
// authenticated doctor. Returns nil after writing the error response.
func requireDoctor(w http.ResponseWriter, r *http.Request) *jwt.Payload {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return nil
	}
	if identity.Role != jwt.RoleDoctor {
		resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
		return nil
	}
	return identity
}
