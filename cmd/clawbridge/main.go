package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smartchainark/clawbridge/internal/agent"
	"github.com/smartchainark/clawbridge/internal/bridge"
	"github.com/smartchainark/clawbridge/internal/config"
	"github.com/smartchainark/clawbridge/internal/gateway"
	"github.com/smartchainark/clawbridge/internal/media"
	"github.com/smartchainark/clawbridge/internal/server"
	"github.com/smartchainark/clawbridge/internal/snapshot"
	"github.com/smartchainark/clawbridge/internal/upload"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	// Initialize structured logging from environment.
	logLevel := os.Getenv("CLAWBRIDGE_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("CLAWBRIDGE_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Snapshot storage.
	store, err := snapshot.NewStore(cfg.Snapshot.Dir)
	if err != nil {
		return err
	}

	// Upload fallback chain.
	providers, err := upload.FromNames(cfg.Upload.Providers)
	if err != nil {
		return err
	}
	chain := upload.NewChain(cfg.Upload.Timeout, providers...)

	// Agent subprocess invoker.
	invoker := agent.NewInvoker(cfg.Agent.Bin, cfg.Agent.MaxConcurrent)

	// Relay core.
	relay := bridge.New(bridge.Config{
		Channel:           cfg.Agent.Channel,
		AgentTimeout:      cfg.Agent.Timeout,
		SnapshotPrompt:    cfg.Agent.SnapshotPrompt,
		VoicePromptPrefix: cfg.Agent.VoicePromptPrefix,
		RequirePublicURL:  cfg.Agent.RequirePublicURL,
		PublicBaseURL:     cfg.Server.PublicBaseURL,
		MediaPrefix:       cfg.Media.Prefix,
	}, store, chain, invoker)

	mediaHandler := media.NewHandler(cfg.Media.Dir)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Optional upstream gateway connection.
	if cfg.Gateway.URL != "" {
		gw := gateway.New(cfg.Gateway.URL, gateway.Options{
			Identity: gateway.DefaultIdentity(version),
			Role:     "operator",
			Scopes:   []string{"operator.read"},
			Token:    cfg.Gateway.Token,
		})
		defer gw.Close()

		go func() {
			if gwErr := gw.Connect(ctx); gwErr != nil {
				log.Error().Err(gwErr).Str("url", cfg.Gateway.URL).Msg("gateway handshake failed")
				return
			}
			log.Info().Str("url", cfg.Gateway.URL).Msg("gateway connected")
		}()
	}

	srv := server.New(ctx, cfg, relay, mediaHandler)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("channel", cfg.Agent.Channel).Msg("starting bridge")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
