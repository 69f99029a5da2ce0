package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/slidecast/adapters/llm"
	"github.com/satriahrh/slidecast/adapters/speech"
	"github.com/satriahrh/slidecast/adapters/vapi"
	"github.com/satriahrh/slidecast/domain/repositories"
	"github.com/satriahrh/slidecast/internal/api"
	"github.com/satriahrh/slidecast/internal/config"
	"github.com/satriahrh/slidecast/internal/websocket"
	"github.com/satriahrh/slidecast/usecase"
)

func main() {
	// A missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	clk := clock.New()

	// Initialize adapters
	voice, err := newVoiceProvider(cfg, clk, logger)
	if err != nil {
		logger.Fatal("Failed to initialize voice provider", zap.Error(err))
	}
	generator := newNotesGenerator(cfg, logger)

	// Initialize usecase services
	narrator := usecase.NewNarrationService(voice, clk, logger.Named("narration"))
	defer narrator.Close()
	merger := usecase.NewDeckMerger(clk, logger.Named("merger"))
	notes := usecase.NewNotesService(generator, logger.Named("notes"))

	// Initialize WebSocket hub and route narration events through it
	hub := websocket.NewHub(narrator, cfg.Server.AllowedOrigins, clk, logger.Named("hub"))
	narrator.SetCallbacks(hub.Callbacks())

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
	}))

	// Initialize API routes
	api.InitRoutes(e, &api.Handlers{
		Narrator: narrator,
		Merger:   merger,
		Notes:    notes,
		Hub:      hub,
		Logger:   logger.Named("api"),
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("voiceProvider", cfg.Voice.Provider))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	if err := narrator.StopNarration(context.Background()); err != nil {
		logger.Warn("Failed to stop narration", zap.Error(err))
	}
	stopHub()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	return zapCfg.Build()
}

func newVoiceProvider(cfg config.Config, clk clock.Clock, logger *zap.Logger) (repositories.VoiceProvider, error) {
	if cfg.Voice.Provider == config.VoiceProviderVapi {
		provider, err := vapi.NewProvider(vapi.Config{
			APIKey:        cfg.Vapi.APIKey,
			APIBaseURL:    cfg.Vapi.BaseURL,
			VoiceProvider: cfg.Vapi.VoiceProvider,
			VoiceID:       cfg.Vapi.VoiceID,
			ModelProvider: cfg.Vapi.ModelProvider,
			Model:         cfg.Vapi.Model,
		}, logger.Named("vapi"))
		if err != nil {
			return nil, err
		}
		return provider, nil
	}

	return speech.NewSimulatedVoice(clk, cfg.Simulated.WordsPerSecond, logger.Named("simulated-voice")), nil
}

func newNotesGenerator(cfg config.Config, logger *zap.Logger) repositories.NotesGenerator {
	if cfg.Gemini.APIKey == "" {
		logger.Info("GEMINI_API_KEY not set, using mock notes generator")
		return llm.NewMockGenerator()
	}

	generator, err := llm.NewGeminiGenerator(context.Background(), llm.GeminiConfig{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
	}, logger.Named("gemini"))
	if err != nil {
		logger.Warn("Failed to initialize Gemini, using mock notes generator", zap.Error(err))
		return llm.NewMockGenerator()
	}
	return generator
}
