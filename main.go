package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"zone-mapper/internal/app"
	"zone-mapper/internal/config"
	"zone-mapper/internal/handler"
	"zone-mapper/internal/jobs"
)

// Finished jobs and their files are kept this long.
const jobRetention = 24 * time.Hour

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	app.SetupLogger(os.Stderr, cfg.Log.Level)
	if err := cfg.Server.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid server config")
	}

	gin.SetMode(gin.ReleaseMode)

	wire, err := app.NewWire(context.Background(), cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot build application")
	}
	defer wire.Close()

	secret := cfg.Server.SessionSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn().Msg("server.session_secret is empty, sessions will not survive a restart")
	}

	jobHandler := handler.NewJobHandler(wire.Pipeline, jobs.NewStore(), cfg.Server.UploadDir, cfg.Server.OutputDir)
	go pruneJobs(jobHandler)
	r := handler.NewRouter(handler.RouterConfig{
		Username:      cfg.Server.Username,
		Password:      cfg.Server.Password,
		SessionSecret: secret,
		TemplateDir:   cfg.Server.TemplateDir,
		TemplateFile:  filepath.Join(cfg.Server.TemplateDir, "template.xlsx"),
	}, jobHandler, wire.Metrics.Handler())

	log.Info().Str("address", cfg.Server.Address).Msg("zone mapper server running")
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msg("cannot generate session secret")
	}
	return hex.EncodeToString(b)
}

// pruneJobs drops expired jobs with their uploads and outputs.
func pruneJobs(h *handler.JobHandler) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if n := h.Prune(time.Now().Add(-jobRetention)); n > 0 {
			log.Info().Int("jobs", n).Msg("expired jobs pruned")
		}
	}
}
