/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains HandleWebSocket, which authenticates the participant's
session token, checks room membership, upgrades the connection, and starts
the client's read/write pumps.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"telemed/internal/app/consult"
	"telemed/internal/pkg/auth/jwt"
	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/limiter"
	"telemed/internal/pkg/logx"
	"telemed/internal/pkg/resp"
)

// HandleWebSocket processes consultation chat socket requests. Browsers
// cannot set an Authorization header on a WebSocket upgrade, so the session
// token travels in the "token" query parameter.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		roomID := chi.URLParam(r, "room")
		if roomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		payload, err := jwt.ParseToken(r.URL.Query().Get("token"), deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket connection rejected: Invalid session token.", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		consultation := deps.Consultations.GetConsultation(roomID)
		if consultation == nil {
			logx.Info("WebSocket connection rejected: Consultation not found.", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrConsultationNotFound))
			return
		}

		switch payload.Role {
		case jwt.RoleDoctor:
			if consultation.DoctorID != payload.ID {
				resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
				return
			}
		case jwt.RolePatient:
			if payload.Room != roomID {
				resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
				return
			}
		default:
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		room := deps.Consultations.GetRoom(roomID)
		if room == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrConsultationNotFound))
			return
		}

		participant := consult.Participant{
			ID:   payload.ID,
			Name: payload.Name,
			Role: payload.Role,
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := consult.NewClient(room, conn, participant)

		go client.WritePump()

		logx.Info("WebSocket connection established", "client_id", participant.ID, "room_id", roomID)

		room.RegisterClient(client)

		client.ReadPump()
	}
}
