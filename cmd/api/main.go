package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"adgenius/internal/compositor"
	"adgenius/internal/http/handlers"
	"adgenius/internal/http/httpapi"
	"adgenius/internal/infra"
	"adgenius/internal/infra/geoip"
	"adgenius/internal/pipeline"
	"adgenius/internal/providers/genai"
	"adgenius/internal/session"
	"adgenius/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	provider, err := genai.NewClient(genai.Options{
		APIKey:            cfg.GeminiAPIKey,
		BaseURL:           cfg.GeminiBaseURL,
		TextModel:         cfg.GeminiTextModel,
		TextProModel:      cfg.GeminiTextProModel,
		ImageModel:        cfg.GeminiImageModel,
		ImageProModel:     cfg.GeminiImageProModel,
		RequestsPerSecond: cfg.GeminiRPS,
		Logger:            &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build content provider")
	}
	providerMode := "gemini"
	if provider.Synthetic() {
		providerMode = "synthetic"
		logger.Warn().Msg("GEMINI_API_KEY not set; serving synthetic content")
	}

	policy, err := session.ParseConflictPolicy(cfg.ConflictPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid conflict policy")
	}
	sessions := session.NewStore(policy)

	comp, err := compositor.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load fonts")
	}
	exports, err := storage.NewFileStore(cfg.ExportDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.ExportDir).Msg("failed to open export store")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	pipe := pipeline.New(provider, pipeline.Options{
		Logger: &logger,
		Tracer: otel.Tracer("adgenius/pipeline"),
	})

	app := handlers.NewApp(handlers.Options{
		Pipeline:          pipe,
		Sessions:          sessions,
		Compositor:        comp,
		Exports:           exports,
		Logger:            &logger,
		ProviderMode:      providerMode,
		ComplexStrategy:   cfg.ComplexStrategy,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   resolver.Lookup(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pruneSessions(ctx, sessions, exports, cfg.SessionTTL, &logger)

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().
		Str("addr", server.Addr()).
		Str("conflict_policy", string(policy)).
		Bool("complex_strategy", cfg.ComplexStrategy).
		Msg("API listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("server stopped")
}

// pruneSessions drops sessions idle for longer than ttl along with their
// stored exports.
func pruneSessions(ctx context.Context, sessions *session.Store, exports *storage.FileStore, ttl time.Duration, logger *infra.Logger) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := sessions.Prune(now.Add(-ttl))
			for _, id := range removed {
				if err := exports.RemoveSession(id); err != nil {
					logger.Warn().Err(err).Str("session_id", id).Msg("failed to remove exports of pruned session")
				}
			}
			if len(removed) > 0 {
				logger.Info().Int("count", len(removed)).Msg("pruned idle sessions")
			}
		}
	}
}
