package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gatehousehq/gatehouse/internal/database"
	"github.com/gatehousehq/gatehouse/internal/logging"
	"github.com/gatehousehq/gatehouse/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("GATEHOUSE_LOG_LEVEL"))

	port := os.Getenv("GATEHOUSE_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("GATEHOUSE_DB_PATH")
	if dbPath == "" {
		dbPath = "gatehouse.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg, err := configFromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Background sweeps: stale invitations expire, rate-limit windows drop.
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.InvitationStore().ExpireStale(time.Now().UTC()); err != nil {
					logger.Error("invitation expiry sweep failed", "error", err)
				} else if n > 0 {
					logger.Info("expired stale invitations", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	go func() {
		fmt.Printf("Gatehouse running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
	srv.Dispatcher().Wait()
}

func configFromEnv() (server.Config, error) {
	cfg := server.Config{
		CredentialSecret:   []byte(os.Getenv("GATEHOUSE_CREDENTIAL_SECRET")),
		IdentitySecret:     []byte(os.Getenv("GATEHOUSE_IDENTITY_SECRET")),
		OverrideSecretHash: os.Getenv("GATEHOUSE_OVERRIDE_SECRET_HASH"),
		OverrideSecret:     os.Getenv("GATEHOUSE_OVERRIDE_SECRET"),
		KioskDegraded:      os.Getenv("GATEHOUSE_KIOSK_DEGRADED") == "true",
		TermsVersion:       os.Getenv("GATEHOUSE_TERMS_VERSION"),
		AgreementVersion:   os.Getenv("GATEHOUSE_AGREEMENT_VERSION"),
		PostmarkToken:      os.Getenv("GATEHOUSE_POSTMARK_TOKEN"),
		FromEmail:          os.Getenv("GATEHOUSE_FROM_EMAIL"),
	}

	if len(cfg.CredentialSecret) == 0 {
		return cfg, fmt.Errorf("GATEHOUSE_CREDENTIAL_SECRET is required")
	}
	if len(cfg.IdentitySecret) == 0 {
		return cfg, fmt.Errorf("GATEHOUSE_IDENTITY_SECRET is required")
	}
	if cfg.OverrideSecretHash == "" && cfg.OverrideSecret == "" {
		return cfg, fmt.Errorf("GATEHOUSE_OVERRIDE_SECRET_HASH or GATEHOUSE_OVERRIDE_SECRET is required")
	}
	if cfg.TermsVersion == "" {
		cfg.TermsVersion = "2026-01"
	}
	if cfg.AgreementVersion == "" {
		cfg.AgreementVersion = "1.0"
	}

	// 0 disables the night cutoff entirely.
	if v := os.Getenv("GATEHOUSE_NIGHT_CUTOFF_HOUR"); v != "" {
		hour, err := strconv.Atoi(v)
		if err != nil || hour < 0 || hour > 23 {
			return cfg, fmt.Errorf("GATEHOUSE_NIGHT_CUTOFF_HOUR must be an hour 0-23")
		}
		cfg.NightCutoffHour = hour
	}

	cfg.Location = time.UTC
	if tz := os.Getenv("GATEHOUSE_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("GATEHOUSE_TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}
