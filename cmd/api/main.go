package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/studio-concierge/backend/internal/config"
	"github.com/zhouzirui/studio-concierge/backend/internal/handler"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/lead"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/reply"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/settings"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/turn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, continuing with system environment variables only", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.Log)
	defer closeLog()
	slog.SetDefault(logger)

	// Persona catalog, optionally replaced from disk and patched with site greetings
	items := persona.Seed()
	if cfg.Widget.CatalogPath != "" {
		items, err = persona.LoadCatalog(cfg.Widget.CatalogPath)
		if err != nil {
			logger.Error("failed to load persona catalog", "path", cfg.Widget.CatalogPath, "error", err)
			os.Exit(1)
		}
		logger.Info("persona catalog loaded", "path", cfg.Widget.CatalogPath, "count", len(items))
	}
	settingsClient := settings.NewClient(cfg.Collaborator.SettingsEndpoint, cfg.Collaborator.Timeout, logger)
	items = settingsClient.ApplyGreetings(ctx, items)
	personaStore := persona.NewMemoryStore(items)

	synth := reply.New(newPicker(cfg.Widget.RandomSeed), reply.WithLogger(logger))
	engine, err := turn.NewEngine(ctx, personaStore, synth, turn.EngineConfig{
		LeadTurnThreshold: cfg.Widget.LeadTurnThreshold,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize turn engine", "error", err)
		os.Exit(1)
	}

	hub := events.NewHub()
	chatService := chat.NewService(engine,
		chat.WithListener(hub),
		chat.WithLogger(logger),
		chat.WithDelays(turn.Delays{
			Typing:   cfg.Widget.TypingDelay,
			Handoff:  cfg.Widget.HandoffDelay,
			LeadForm: cfg.Widget.LeadFormDelay,
		}),
	)
	defer chatService.Close()

	var submitter lead.Submitter
	if cfg.Collaborator.LeadEndpoint != "" {
		submitter = lead.NewHTTPSubmitter(cfg.Collaborator.LeadEndpoint, cfg.Collaborator.Timeout)
	} else {
		logger.Info("LEAD_ENDPOINT not configured, lead capture disabled")
	}
	leadService := lead.NewService(submitter, logger)

	router := handler.NewRouter(personaStore, chatService, leadService, hub, cfg.Widget.MaxMessageLength)

	startServer(ctx, logger, cfg.Server, router)
}

func newPicker(seed *uint64) reply.Picker {
	if seed != nil {
		return rand.New(rand.NewPCG(*seed, *seed))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func startServer(ctx context.Context, logger *slog.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("studio concierge backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
