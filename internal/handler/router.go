/*
Package handler provides the HTTP handlers and routing setup for the telemed server.

This file defines the main Router, applying middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"telemed/internal/pkg/auth/jwt"
	"telemed/internal/pkg/limiter"
	"telemed/internal/pkg/logx"
	"telemed/internal/pkg/resp"
)

const (
	// LoginRate limits credential attempts per IP.
	LoginRate  = 0.2
	LoginBurst = 5

	// TokenRate bounds video token issuance per IP. Normal clients hit the
	// endpoint once per consultation thanks to the client-side cache.
	TokenRate  = 0.5
	TokenBurst = 10

	// WsRate limits chat socket connection attempts per IP.
	WsRate  = 0.2
	WsBurst = 5

	// PreflightMaxAge lets browsers cache the CORS preflight for a day.
	PreflightMaxAge = 86400
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global
// and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	loginLimiter := limiter.NewIPRateLimiter(rate.Limit(LoginRate), LoginBurst)
	tokenLimiter := limiter.NewIPRateLimiter(rate.Limit(TokenRate), TokenBurst)
	wsLimiter := limiter.NewIPRateLimiter(rate.Limit(WsRate), WsBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           PreflightMaxAge,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "Telemed Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			rateLimitedLogin := loginLimiter.Middleware(HandleLogin(deps))
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", rateLimitedLogin.ServeHTTP)
			auth.Post("/change-password", HandleChangePassword(deps))
		})

		api.Route("/doctor", func(doctor chi.Router) {
			doctor.Get("/profile", HandleGetDoctorProfile(deps))
			doctor.Post("/profile", HandleUpdateDoctorProfile(deps))
			doctor.Post("/avatar/presign", HandlePresignAvatarUpload(deps))
		})

		api.Route("/medicines", func(med chi.Router) {
			med.Get("/search", HandleSearchMedicines(deps))
			med.Get("/", HandleListMedicines(deps))
		})

		api.Route("/prescriptions", func(rx chi.Router) {
			rx.Post("/", HandleCreatePrescription(deps))
			rx.Get("/", HandleListPrescriptions(deps))
			rx.Get("/{id}", HandleGetPrescription(deps))
		})

		api.Route("/consult", func(consult chi.Router) {
			consult.Post("/create", HandleCreateConsultation(deps))
			consult.Post("/join", HandleJoinConsultation(deps))
			consult.Get("/", HandleGetConsultation(deps))
		})

		rateLimitedToken := tokenLimiter.Middleware(HandleVideoToken(deps))
		api.Post("/video/token", rateLimitedToken.ServeHTTP)
		api.Get("/video/token", rateLimitedToken.ServeHTTP)
	})

	r.Get("/ws/consult/{room}", HandleWebSocket(deps, wsUpgrader, wsLimiter))

	return r
}
