package handler

import (
	"telemed/internal/app/consult"
	"telemed/internal/app/db"
	"telemed/internal/app/storage"
	"telemed/internal/configs"
	"telemed/internal/video/token"
)

// AppDeps bundles the shared dependencies injected into every handler.
type AppDeps struct {
	Config        *configs.AppConfig
	DB            *db.Queries
	Storage       storage.Service
	Consultations *consult.Manager
	Issuer        *token.Issuer
}
