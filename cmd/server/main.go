package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	cacheredis "caseguard/internal/cache/redis"
	"caseguard/internal/config"
	"caseguard/internal/detect"
	"caseguard/internal/extract"
	"caseguard/internal/handler"
	"caseguard/internal/llm"
	"caseguard/internal/llm/bedrock"
	"caseguard/internal/llm/claude"
	"caseguard/internal/llm/gemini"
	"caseguard/internal/llm/openai"
	"caseguard/internal/logger"
	"caseguard/internal/notify/noop"
	"caseguard/internal/notify/ses"
	"caseguard/internal/observability/metrics"
	"caseguard/internal/ocr/textract"
	"caseguard/internal/port"
	"caseguard/internal/repository/postgres"
	"caseguard/internal/router"
	"caseguard/internal/service"
	s3storage "caseguard/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func registerProviders() {
	llm.RegisterProvider("claude", func(cfg *config.ProviderConfig) (port.TextGenerator, error) {
		return claude.NewGenerator(cfg), nil
	})
	llm.RegisterProvider("openai", func(cfg *config.ProviderConfig) (port.TextGenerator, error) {
		return openai.NewGenerator(cfg), nil
	})
	llm.RegisterProvider("gemini", func(cfg *config.ProviderConfig) (port.TextGenerator, error) {
		return gemini.NewGenerator(cfg), nil
	})
	llm.RegisterProvider("bedrock", func(cfg *config.ProviderConfig) (port.TextGenerator, error) {
		g, err := bedrock.NewGenerator(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	})
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	auditRepo := postgres.NewRedactionAuditRepo(db)

	storage, err := s3storage.NewStorage(ctx, &cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 storage: %w", err)
	}

	var ocr port.OCREngine
	switch cfg.OCR.Provider {
	case "textract":
		ocr, err = textract.NewEngine(ctx, &cfg.OCR)
		if err != nil {
			return fmt.Errorf("failed to initialize textract: %w", err)
		}
	case "", "none":
		log.Warn().Msg("main: no OCR engine configured, image documents will fail extraction")
	default:
		return fmt.Errorf("unknown ocr provider: %s", cfg.OCR.Provider)
	}

	var cache port.DetectionCache
	if cfg.Detector.Enabled && cfg.Cache.Enabled {
		client, err := cacheredis.NewClient(ctx, &cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to initialize detection cache: %w", err)
		}
		defer client.Close()
		cache = cacheredis.NewDetectionCache(client)
	}

	model, err := buildModelDetector(cfg, cache)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(ctx, &cfg.Notify)
	if err != nil {
		return err
	}

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	redactionSvc := service.NewRedactionService(
		extract.NewExtractor(ocr, extract.WithMaxWordXMLBytes(4*cfg.Pipeline.MaxFileBytes())),
		detect.NewPatternDetector(),
		model,
		storage,
		auditRepo,
		notifier,
		pipelineMetrics,
		service.RedactionConfig{
			Bucket:        cfg.S3.Bucket,
			PresignExpiry: cfg.S3.PresignExpiry,
			MaxFileBytes:  cfg.Pipeline.MaxFileBytes(),
			SampleChars:   cfg.Pipeline.AuditSampleChars,
		},
	)

	redactionH := handler.NewRedactionHandler(redactionSvc, cfg.Pipeline.MaxFileBytes())
	healthH := handler.NewHealthHandler(db)

	r := router.Setup(redactionH, healthH, cfg.CORS.AllowedOrigins, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Port).Str("env", cfg.Server.Environment).Msg("main: server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("main: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func buildModelDetector(cfg *config.Config, cache port.DetectionCache) (*detect.ModelDetector, error) {
	if !cfg.Detector.Enabled {
		log.Warn().Msg("main: model detector disabled, using pattern rules only")
		return nil, nil
	}

	registerProviders()
	chain := cfg.Detector.ProviderChain()
	gen, err := llm.NewChain(chain)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm providers: %w", err)
	}

	return detect.NewModelDetector(gen, cache, detect.ModelDetectorConfig{
		CharLimit: cfg.Detector.PromptCharLimit,
		Timeout:   cfg.Detector.Timeout(),
		MaxTokens: cfg.Detector.MaxTokens,
		Model:     chain[0].Provider + ":" + chain[0].DefaultModel,
		CacheTTL:  cfg.Cache.TTL,
	}), nil
}

func buildNotifier(ctx context.Context, cfg *config.NotifyConfig) (port.ReviewNotifier, error) {
	switch cfg.Provider {
	case "ses":
		n, err := ses.NewSESNotifier(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SES notifier: %w", err)
		}
		return n, nil
	case "", "noop":
		return noop.NewNoopNotifier(), nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Provider)
	}
}
