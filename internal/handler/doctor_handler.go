package handler

import (
	"net/http"
	"strings"

	"telemed/internal/app/db"
	"telemed/internal/app/storage"
	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/logx"
	"telemed/internal/pkg/req"
	"telemed/internal/pkg/resp"
)

// presignAvatarIfSet turns a stored avatar key into a short-lived download
// URL. Returns "" when no avatar exists or presigning fails; profile reads
// should not fail because the storage backend hiccuped.
func presignAvatarIfSet(r *http.Request, deps *AppDeps, key string) string {
	if key == "" {
		return ""
	}

	url, err := deps.Storage.PresignDownload(r.Context(), key, storage.DownloadURLTTL)
	if err != nil {
		logx.Warn("avatar presign failed", "key", key)
		return ""
	}
	return url
}

// HandleGetDoctorProfile returns the authenticated doctor's profile.
func HandleGetDoctorProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireDoctor(w, r)
		if identity == nil {
			return
		}

		doctor, err := deps.DB.GetDoctorByID(r.Context(), identity.ID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrDoctorNotFound))
			return
		}

		avatarURL := presignAvatarIfSet(r, deps, doctor.AvatarKey)
		resp.RespondSuccess(w, r, map[string]any{
			"doctor": doctorResponse(doctor, avatarURL),
		})
	}
}

type UpdateProfileInput struct {
	FullName       string `json:"fullName"`
	Specialization string `json:"specialization"`
	ClinicName     string `json:"clinicName"`
	Phone          string `json:"phone"`
	AvatarKey      string `json:"avatarKey"`
}

// HandleUpdateDoctorProfile updates the authenticated doctor's profile
// fields. An avatarKey must come from a presign grant scoped to the doctor.
func HandleUpdateDoctorProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireDoctor(w, r)
		if identity == nil {
			return
		}

		var input UpdateProfileInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.FullName = strings.TrimSpace(input.FullName)
		if input.FullName == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if input.AvatarKey != "" && !storage.OwnsAvatarKey(identity.ID, input.AvatarKey) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		old, err := deps.DB.GetDoctorByID(r.Context(), identity.ID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrDoctorNotFound))
			return
		}

		avatarKey := input.AvatarKey
		if avatarKey == "" {
			avatarKey = old.AvatarKey
		}

		updated, err := deps.DB.UpdateDoctorProfile(r.Context(), db.UpdateDoctorProfileParams{
			ID:             identity.ID,
			FullName:       input.FullName,
			Specialization: strings.TrimSpace(input.Specialization),
			ClinicName:     strings.TrimSpace(input.ClinicName),
			Phone:          strings.TrimSpace(input.Phone),
			AvatarKey:      avatarKey,
		})
		if err != nil {
			logx.Error(err, "failed to update doctor profile", "doctor_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if stale := supersededAvatarKey(old.AvatarKey, updated.AvatarKey); stale != "" {
			if err := deps.Storage.Delete(r.Context(), stale); err != nil {
				logx.Warn("superseded avatar delete failed", "key", stale)
			}
		}

		avatarURL := presignAvatarIfSet(r, deps, updated.AvatarKey)
		resp.RespondSuccess(w, r, map[string]any{
			"doctor": doctorResponse(updated, avatarURL),
		})
	}
}

// supersededAvatarKey returns the old avatar object key when a profile update
// replaced it with a different one, else "". Avatar keys only change when the
// file extension changes, so the previous object would otherwise be orphaned.
func supersededAvatarKey(oldKey, newKey string) string {
	if oldKey == "" || oldKey == newKey {
		return ""
	}
	return oldKey
}

type PresignAvatarInput struct {
	ContentType string `json:"contentType"`
	FileSize    int64  `json:"fileSize"`
}

// HandlePresignAvatarUpload grants a short-lived upload URL for the doctor's
// avatar. The client PUTs the image there and then saves the returned key via
// the profile update endpoint.
func HandlePresignAvatarUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireDoctor(w, r)
		if identity == nil {
			return
		}

		var input PresignAvatarInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.FileSize <= 0 || input.FileSize > storage.MaxAvatarSize {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		key, err := storage.AvatarKey(identity.ID, input.ContentType)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnsupportedMediaType))
			return
		}

		uploadURL, err := deps.Storage.PresignUpload(r.Context(), key, input.ContentType, input.FileSize, storage.UploadURLTTL)
		if err != nil {
			logx.Error(err, "avatar upload presign failed", "doctor_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"uploadUrl": uploadURL,
			"key":       key,
		})
	}
}
