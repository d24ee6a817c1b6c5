/*
Package main is the entry point for the telemed server.

It loads configuration, initializes the global logging system, connects the
database and object storage, builds the video token issuer and consultation
manager, and runs the HTTP server with graceful shutdown on SIGINT/SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telemed/internal/app/consult"
	"telemed/internal/app/db"
	"telemed/internal/app/storage"
	"telemed/internal/configs"
	"telemed/internal/handler"
	"telemed/internal/pkg/logx"
	"telemed/internal/video/token"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger("telemed", cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("video_domain", cfg.JaaSDomain).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	storageService, err := storage.NewService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize storage service")
	}

	issuer := token.NewIssuer(token.Config{
		AppID:                    cfg.JaaSAppID,
		KeyID:                    cfg.JaaSKeyID,
		PrivateKeyPEM:            cfg.JaaSPrivateKey,
		PrivateKeyPath:           cfg.JaaSPrivateKeyPath,
		Domain:                   cfg.JaaSDomain,
		DefaultExpirationMinutes: cfg.JaaSTokenMinutes,
	})

	consultations := consult.NewManager()

	deps := &handler.AppDeps{
		Config:        cfg,
		DB:            db.NewQueries(pool),
		Storage:       storageService,
		Consultations: consultations,
		Issuer:        issuer,
	}

	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Telemed server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	consultations.Shutdown()

	logx.Info("Server gracefully stopped.")
}
