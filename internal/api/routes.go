package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/usecase"
)

// Narrator drives slide narration
type Narrator interface {
	StartSlidePresentation(ctx context.Context, slide entities.Slide, slideIndex, totalSlides int, title string) error
	StartAutoAdvancePresentation(ctx context.Context, slides []entities.Slide, title string, onSlideComplete, onAutoAdvanceNext func()) error
	StopNarration(ctx context.Context) error
	PauseNarration(ctx context.Context) error
	ResumeNarration(ctx context.Context) error
	Status() usecase.NarrationSnapshot
}

// DeckResolver merges an imported deck into an existing one
type DeckResolver interface {
	Resolve(existing, imported entities.Deck, opts entities.ConflictResolutionOptions) (entities.Deck, error)
}

// NotesWriter produces narration scripts and decks
type NotesWriter interface {
	EnsureNotes(ctx context.Context, deck entities.Deck) (entities.Deck, error)
	GenerateDeck(ctx context.Context, topic string, count int) (entities.Deck, error)
}

// EventHub streams narration events to browsers
type EventHub interface {
	HandleWebSocket(c echo.Context) error
	OnSlideComplete()
	OnAutoAdvanceNext()
}

// Handlers bundles the services behind the HTTP API
type Handlers struct {
	Narrator Narrator
	Merger   DeckResolver
	Notes    NotesWriter
	Hub      EventHub
	Logger   *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handlers) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "slidecast-server",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/ws", h.Hub.HandleWebSocket)

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Narration APIs
	v1.GET("/narration/status", h.narrationStatus)
	v1.POST("/narration/slide", h.startSlide)
	v1.POST("/narration/auto", h.startAutoAdvance)
	v1.POST("/narration/stop", h.command(Narrator.StopNarration))
	v1.POST("/narration/pause", h.command(Narrator.PauseNarration))
	v1.POST("/narration/resume", h.command(Narrator.ResumeNarration))

	// Deck APIs
	v1.POST("/decks/merge", h.mergeDecks)
	v1.POST("/decks/notes", h.ensureNotes)
	v1.POST("/decks/generate", h.generateDeck)
}

func (h *Handlers) narrationStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Narrator.Status())
}

func (h *Handlers) startSlide(c echo.Context) error {
	var req StartSlideRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, err)
	}

	total := req.TotalSlides
	if total < 1 {
		total = 1
	}
	err := h.Narrator.StartSlidePresentation(c.Request().Context(), req.Slide, req.SlideIndex, total, req.Title)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, h.Narrator.Status())
}

func (h *Handlers) startAutoAdvance(c echo.Context) error {
	var req StartAutoAdvanceRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, err)
	}

	err := h.Narrator.StartAutoAdvancePresentation(c.Request().Context(), req.Slides, req.Title, h.Hub.OnSlideComplete, h.Hub.OnAutoAdvanceNext)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, h.Narrator.Status())
}

func (h *Handlers) command(run func(Narrator, context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := run(h.Narrator, c.Request().Context()); err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(http.StatusOK, h.Narrator.Status())
	}
}

func (h *Handlers) mergeDecks(c echo.Context) error {
	var req MergeDecksRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, err)
	}

	deck, err := h.Merger.Resolve(req.Existing, req.Imported, req.Options.WithDefaults())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, deck)
}

func (h *Handlers) ensureNotes(c echo.Context) error {
	var deck entities.Deck
	if err := c.Bind(&deck); err != nil {
		return h.badRequest(c, err)
	}
	if err := deck.Validate(); err != nil {
		return h.badRequest(c, err)
	}

	out, err := h.Notes.EnsureNotes(c.Request().Context(), deck)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) generateDeck(c echo.Context) error {
	var req GenerateDeckRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, err)
	}

	deck, err := h.Notes.GenerateDeck(c.Request().Context(), req.Topic, req.SlideCount)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, deck)
}

func (h *Handlers) badRequest(c echo.Context, err error) error {
	h.Logger.Warn("Rejected request", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
	})
}

// respondError maps service errors onto HTTP responses
func (h *Handlers) respondError(c echo.Context, err error) error {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		h.Logger.Warn("Request rejected", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func classifyError(err error) (int, string) {
	var tooShort *usecase.ContentTooShortError
	var startErr *usecase.SessionStartError

	switch {
	case errors.As(err, &tooShort):
		return http.StatusBadRequest, "content_too_short"
	case errors.Is(err, usecase.ErrNoSlides):
		return http.StatusBadRequest, "no_slides"
	case errors.Is(err, usecase.ErrUnknownConflictAction):
		return http.StatusBadRequest, "unknown_conflict_action"
	case errors.Is(err, usecase.ErrInvalidConflictOptions):
		return http.StatusBadRequest, "invalid_conflict_options"
	case errors.Is(err, usecase.ErrInvalidDeckRequest):
		return http.StatusBadRequest, "invalid_deck_request"
	case errors.Is(err, usecase.ErrNarrationBusy):
		return http.StatusConflict, "narration_busy"
	case errors.Is(err, usecase.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, usecase.ErrNarrationCancelled):
		return http.StatusConflict, "narration_cancelled"
	case errors.As(err, &startErr):
		return http.StatusBadGateway, "session_start_failed"
	case errors.Is(err, usecase.ErrServiceNotInitialized):
		return http.StatusServiceUnavailable, "service_not_initialized"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
