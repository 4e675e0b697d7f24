package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/webhelpdesk/helpdesk/internal/config"
	"github.com/webhelpdesk/helpdesk/internal/handler"
	"github.com/webhelpdesk/helpdesk/internal/handler/session"
	"github.com/webhelpdesk/helpdesk/internal/observability"
	"github.com/webhelpdesk/helpdesk/internal/service/ask"
	"github.com/webhelpdesk/helpdesk/internal/service/chat"
	"github.com/webhelpdesk/helpdesk/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger("info", false)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.Log.Level, cfg.Log.Pretty)
	logger := observability.Component("main")
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	askClient, err := ask.NewClient(ask.Options{
		BaseURL:       cfg.Ask.URL,
		Timeout:       cfg.Ask.Timeout,
		RetryAttempts: cfg.Ask.RetryAttempts,
		RetryBackoff:  cfg.Ask.RetryBackoff,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create ask client")
	}
	logger.Info().Str("endpoint", askClient.Endpoint()).Msg("ask client ready")

	chatService := chat.NewService()

	var speechService *speech.Service
	if cfg.Speech.Enabled() {
		speechService = speech.NewService(cfg.Speech.Model())
		logger.Info().Msg("speech service initialized")
	} else {
		logger.Info().Msg("speech credentials not configured, voice features disabled")
	}

	addr, err := cfg.Server.Addr()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid server address")
	}

	router := handler.NewRouter(handler.Deps{
		Chat:   chatService,
		Asker:  askClient,
		Speech: speechService,
		Voice: session.VoiceOptions{
			Locale:       cfg.Voice.Locale,
			SpeakDefault: cfg.Voice.SpeakDefault,
			SampleRate:   cfg.Voice.SampleRate,
			VAD: speech.VADConfig{
				EnergyThreshold: cfg.Voice.VADThreshold,
				SilenceFrames:   cfg.Voice.SilenceFrames(),
			},
			MaxRecording: cfg.Voice.MaxRecording,
			TTSVoice:     cfg.Speech.TTSVoice,
		},
		Locale:         cfg.Voice.Locale,
		MetricsEnabled: cfg.MetricsEnabled,
		PublicURL:      cfg.Server.PublicURL,
		ListenAddr:     addr,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("helpdesk listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
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
