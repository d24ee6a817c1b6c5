/*
This file implements the video token endpoint. Its payload shape is a wire
contract shared with the front-end meeting widget and the token client, so it
is written directly instead of going through the resp envelope: success
responses carry the issued credential at the top level and failures are
{"success": false, "error": ..., "details": ...}.
*/
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"telemed/internal/pkg/auth/jwt"
	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/logx"
	"telemed/internal/video/token"
)

type videoTokenSuccess struct {
	Success bool `json:"success"`
	*token.IssuedToken
}

type videoTokenFailure struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeVideoJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logx.Error(err, "failed to write video token response")
	}
}

func writeVideoFailure(w http.ResponseWriter, status int, message string, details []string) {
	writeVideoJSON(w, status, videoTokenFailure{
		Success: false,
		Error:   message,
		Details: details,
	})
}

// parseVideoTokenRequest reads the token request from the JSON body (POST) or
// the query string (GET). Both carry the same parameters and must behave
// identically downstream.
func parseVideoTokenRequest(r *http.Request) (token.Request, bool) {
	var req token.Request

	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.RoomID = q.Get("roomId")
		req.UserID = q.Get("userId")
		req.UserName = q.Get("userName")
		req.UserEmail = q.Get("userEmail")
		req.UserRole = q.Get("userRole")
		if raw := q.Get("expirationMinutes"); raw != "" {
			minutes, err := strconv.Atoi(raw)
			if err != nil {
				return req, false
			}
			req.ExpirationMinutes = minutes
		}
		return req, true
	}

	body := http.MaxBytesReader(nil, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, false
	}
	return req, true
}

// HandleVideoToken issues a signed video session credential for the caller's
// own identity. The session decides who the caller is; the request only
// picks the room and lifetime. Patients are further restricted to the single
// room their session was created for.
func HandleVideoToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			writeVideoFailure(w, http.StatusUnauthorized, "Authentication required.", nil)
			return
		}

		req, ok := parseVideoTokenRequest(r)
		if !ok {
			writeVideoFailure(w, http.StatusBadRequest, "Invalid request payload.", nil)
			return
		}

		if req.UserID != identity.ID || req.UserRole != identity.Role {
			writeVideoFailure(w, http.StatusForbidden, "Token request does not match the authenticated session.", nil)
			return
		}
		if identity.Role == jwt.RolePatient && token.NormalizeRoomID(req.RoomID) != identity.Room {
			writeVideoFailure(w, http.StatusForbidden, "Patients can only join their own consultation room.", nil)
			return
		}

		issued, err := deps.Issuer.Issue(req)
		if err != nil {
			customErr, details := classifyIssueError(err)
			if customErr.Status >= http.StatusInternalServerError {
				logx.Error(err, "video token issuance failed", "room_id", req.RoomID, "code", customErr.Code)
			}
			writeVideoFailure(w, customErr.Status, customErr.Message, details)
			return
		}

		writeVideoJSON(w, http.StatusOK, videoTokenSuccess{
			Success:     true,
			IssuedToken: issued,
		})
	}
}

// classifyIssueError maps issuer failures onto the application error codes.
// Validation details are safe to echo; configuration and key problems surface
// as a generic server error with the specifics kept in the log.
func classifyIssueError(err error) (*errs.CustomError, []string) {
	var issueErr *token.Error
	if !errors.As(err, &issueErr) {
		return errs.NewError(errs.ErrUnknown, err), nil
	}

	switch issueErr.Kind {
	case token.KindValidation:
		if len(issueErr.Missing) > 0 {
			return errs.NewError(errs.ErrVideoTokenRequest, strings.Join(issueErr.Missing, ", ")), issueErr.Missing
		}
		return errs.NewError(errs.ErrInvalidParams), nil

	case token.KindConfiguration:
		return errs.NewError(errs.ErrVideoConfiguration), nil

	case token.KindKeyLoad:
		return errs.NewError(errs.ErrVideoKeyLoad), nil

	default:
		return errs.NewError(errs.ErrUnknown, err), nil
	}
}
