package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/domain/repositories"
	"github.com/satriahrh/slidecast/internal/metrics"
)

const (
	// speechSettleDelay is the pause after speech ends before a slide counts as complete
	speechSettleDelay = 3 * time.Second
	// callTeardownDelay is how long a replaced call gets to hang up before the next one starts
	callTeardownDelay = 1 * time.Second
)

// Callbacks are the UI notifications of the narrator. Any of them may be nil.
type Callbacks struct {
	OnError        func(message string)
	OnStatusChange func(status entities.NarrationStatus)
	OnWordProgress func(spoken, total int)
}

// NarrationSnapshot is a point-in-time view of the narrator
type NarrationSnapshot struct {
	Status      entities.NarrationStatus `json:"status"`
	Narrating   bool                     `json:"narrating"`
	Initialized bool                     `json:"initialized"`
	Spoken      int                      `json:"spoken"`
	Total       int                      `json:"total"`
	Percent     int                      `json:"percent"`
	SlideIndex  int                      `json:"slide_index"`
	SlideCount  int                      `json:"slide_count"`
	AutoAdvance bool                     `json:"auto_advance"`
}

// narrationSession tracks the word progress of the slide currently being narrated
type narrationSession struct {
	slideID     string
	slideIndex  int
	totalSlides int
	title       string

	scriptWords []string
	total       int
	spoken      int
	estimate    float64

	speaking    bool
	heardSpeech bool
	hasEnded    bool

	startedAt        time.Time
	lastTranscriptAt time.Time
}

// timerSlot holds at most one pending timer. Bumping seq invalidates a timer that
// already fired but has not yet acquired the service lock.
type timerSlot struct {
	timer *clock.Timer
	seq   uint64
}

// NarrationService narrates slides through a voice vendor, one call at a time,
// estimating word progress and optionally advancing through a whole deck.
type NarrationService struct {
	voice  repositories.VoiceProvider
	clock  clock.Clock
	logger *zap.Logger
	bus    *callbackBus

	mu        sync.Mutex
	callbacks Callbacks
	status    entities.NarrationStatus
	session   *narrationSession
	auto      *autoAdvanceState

	call     repositories.VoiceCall
	callID   string
	starting bool
	paused   bool

	explicitlyStopped bool

	// epoch changes whenever the current run is abandoned; timers and pending
	// starts compare against it before acting
	epoch uint64
	halt  chan struct{}

	settle  timerSlot
	tick    timerSlot
	advance timerSlot
	uiSync  timerSlot
}

// NewNarrationService creates the narrator. voice may be nil when no vendor is configured,
// in which case every start fails with ErrServiceNotInitialized.
func NewNarrationService(voice repositories.VoiceProvider, clk clock.Clock, logger *zap.Logger) *NarrationService {
	if clk == nil {
		clk = clock.New()
	}
	return &NarrationService{
		voice:  voice,
		clock:  clk,
		logger: logger,
		bus:    newCallbackBus(),
		status: entities.NarrationStatusIdle,
		halt:   make(chan struct{}),
	}
}

// SetCallbacks registers the UI notifications, replacing any previous registration
func (s *NarrationService) SetCallbacks(callbacks Callbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = callbacks
}

// StartSlidePresentation narrates a single slide. Any auto-advance run in progress is abandoned.
func (s *NarrationService) StartSlidePresentation(ctx context.Context, slide entities.Slide, slideIndex, totalSlides int, title string) error {
	if s.voice == nil {
		return ErrServiceNotInitialized
	}
	if err := checkNarratable(slide); err != nil {
		return err
	}

	s.mu.Lock()
	if s.starting {
		s.mu.Unlock()
		return ErrNarrationBusy
	}
	s.abandonRunLocked()
	s.auto = nil
	epoch := s.epoch
	s.mu.Unlock()

	return s.startSlide(ctx, slide, slideIndex, totalSlides, title, epoch)
}

// StopNarration ends the current call and every pending timer. It is a no-op when
// nothing is being narrated.
func (s *NarrationService) StopNarration(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil && s.auto == nil && s.call == nil && !s.starting {
		s.mu.Unlock()
		return nil
	}
	call := s.stopLocked()
	s.mu.Unlock()

	s.logger.Info("Narration stopped")
	s.hangUp(call)
	return nil
}

// PauseNarration mutes the assistant and stops progress estimation
func (s *NarrationService) PauseNarration(ctx context.Context) error {
	s.mu.Lock()
	call := s.call
	s.mu.Unlock()

	if call == nil {
		return ErrNoActiveSession
	}
	if err := call.SetMuted(true); err != nil {
		return fmt.Errorf("pause narration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call != call {
		return ErrNoActiveSession
	}
	s.paused = true
	s.cancel(&s.tick)
	s.setStatusLocked(entities.NarrationStatusPaused)
	return nil
}

// ResumeNarration unmutes the assistant. Progress estimation restarts only when the
// narration was paused mid-speech.
func (s *NarrationService) ResumeNarration(ctx context.Context) error {
	s.mu.Lock()
	call := s.call
	s.mu.Unlock()

	if call == nil {
		return ErrNoActiveSession
	}
	if err := call.SetMuted(false); err != nil {
		return fmt.Errorf("resume narration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call != call {
		return ErrNoActiveSession
	}
	s.paused = false
	if s.session != nil && s.session.speaking {
		s.setStatusLocked(entities.NarrationStatusSpeaking)
		s.startTickingLocked()
	} else {
		s.setStatusLocked(entities.NarrationStatusConnected)
	}
	return nil
}

// IsNarrating reports whether a slide is being narrated or an auto-advance run is underway
func (s *NarrationService) IsNarrating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNarratingLocked()
}

func (s *NarrationService) isNarratingLocked() bool {
	if s.starting {
		return true
	}
	switch s.status {
	case entities.NarrationStatusConnected,
		entities.NarrationStatusSpeaking,
		entities.NarrationStatusPaused,
		entities.NarrationStatusTransitioning:
		return s.session != nil
	}
	return false
}

// IsServiceInitialized reports whether a voice vendor is configured
func (s *NarrationService) IsServiceInitialized() bool {
	return s.voice != nil
}

// Status returns the current state of the narrator
func (s *NarrationService) Status() NarrationSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := NarrationSnapshot{
		Status:      s.status,
		Narrating:   s.isNarratingLocked(),
		Initialized: s.voice != nil,
		SlideIndex:  -1,
	}
	if s.session != nil {
		snap.Spoken = s.session.spoken
		snap.Total = s.session.total
		snap.Percent = ProgressPercent(s.session.spoken, s.session.total)
		snap.SlideIndex = s.session.slideIndex
		snap.SlideCount = s.session.totalSlides
	}
	if s.auto != nil {
		snap.AutoAdvance = true
		snap.SlideIndex = s.auto.currentIndex
		snap.SlideCount = len(s.auto.slides)
	}
	return snap
}

// Close stops any narration and releases the callback dispatcher. Callbacks already
// emitted are still delivered.
func (s *NarrationService) Close() {
	s.mu.Lock()
	var call repositories.VoiceCall
	if s.session != nil || s.auto != nil || s.call != nil || s.starting {
		call = s.stopLocked()
	}
	s.mu.Unlock()

	s.hangUp(call)
	s.bus.close()
}

func checkNarratable(slide entities.Slide) error {
	if !slide.CanNarrate() {
		return &ContentTooShortError{Length: slide.NarrationLength(), Minimum: entities.MinNarrationLength}
	}
	return nil
}

// startSlide opens a call for one slide. It gives up with ErrNarrationCancelled as soon
// as the run identified by epoch is abandoned.
func (s *NarrationService) startSlide(ctx context.Context, slide entities.Slide, slideIndex, totalSlides int, title string, epoch uint64) error {
	if err := checkNarratable(slide); err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrNarrationCancelled
	}
	if s.starting {
		s.mu.Unlock()
		return ErrNarrationBusy
	}

	s.starting = true
	s.explicitlyStopped = false
	s.paused = false
	s.cancel(&s.settle)
	s.cancel(&s.tick)

	words := slide.ScriptWords()
	s.session = &narrationSession{
		slideID:     slide.ID,
		slideIndex:  slideIndex,
		totalSlides: totalSlides,
		title:       title,
		scriptWords: words,
		total:       len(words),
		startedAt:   s.clock.Now(),
	}
	// Reset the UI before the vendor is even contacted so stale progress never shows
	s.emitProgressLocked(0, len(words))

	previous := s.call
	s.call = nil
	callID := uuid.NewString()
	s.callID = callID
	halt := s.halt
	s.mu.Unlock()

	logger := s.logger.With(zap.String("callID", callID), zap.Int("slideIndex", slideIndex))

	if previous != nil {
		wait := s.clock.Timer(callTeardownDelay)
		if err := previous.Stop(); err != nil {
			logger.Warn("Failed to stop previous call", zap.Error(err))
		}
		select {
		case <-wait.C:
		case <-halt:
			wait.Stop()
			return ErrNarrationCancelled
		case <-ctx.Done():
			wait.Stop()
			s.clearStarting(epoch)
			return ctx.Err()
		}
	}

	req := repositories.CallRequest{
		SystemPrompt: narrationPrompt(title),
		FirstMessage: strings.TrimSpace(slide.Notes),
		Metadata: map[string]string{
			"slideId":     slide.ID,
			"slideIndex":  strconv.Itoa(slideIndex),
			"totalSlides": strconv.Itoa(totalSlides),
			"title":       title,
		},
	}

	requestedAt := s.clock.Now()
	call, err := s.voice.Start(ctx, req, &callListener{service: s, callID: callID})
	metrics.NarrationSessionStartLatency.Observe(float64(s.clock.Since(requestedAt).Milliseconds()))

	s.mu.Lock()
	if s.epoch != epoch || s.callID != callID {
		s.mu.Unlock()
		logger.Info("Narration abandoned while the call was starting")
		s.hangUp(call)
		return ErrNarrationCancelled
	}

	s.starting = false
	if err != nil {
		metrics.NarrationSessionStartFailures.Inc()
		s.callID = ""
		s.setStatusLocked(entities.NarrationStatusError)
		s.haltAutoAdvanceLocked()
		s.mu.Unlock()

		logger.Error("Failed to start narration call", zap.Error(err))
		return &SessionStartError{Err: err}
	}

	if s.session != nil && !s.session.hasEnded {
		s.call = call
	}
	metrics.NarrationSessionsStarted.Inc()
	s.mu.Unlock()

	logger.Info("Narration call started",
		zap.String("slideID", slide.ID),
		zap.Int("totalSlides", totalSlides),
		zap.Int("words", len(words)))
	return nil
}

func (s *NarrationService) clearStarting(epoch uint64) {
	s.mu.Lock()
	if s.epoch == epoch {
		s.starting = false
	}
	s.mu.Unlock()
}

func narrationPrompt(title string) string {
	if title == "" {
		title = "this presentation"
	}
	return fmt.Sprintf("You are the narrator of the presentation %q. "+
		"Read the first message aloud exactly as written, word for word. "+
		"Do not add greetings, commentary or follow-up questions.", title)
}

// stopLocked abandons everything and returns the call the caller must hang up
// after releasing the lock
func (s *NarrationService) stopLocked() repositories.VoiceCall {
	s.explicitlyStopped = true
	s.abandonRunLocked()

	call := s.call
	s.call = nil
	s.callID = ""
	s.session = nil
	s.auto = nil
	s.paused = false

	s.setStatusLocked(entities.NarrationStatusStopped)
	s.emitProgressLocked(0, 0)
	return call
}

// abandonRunLocked invalidates every timer and aborts a start waiting on teardown
func (s *NarrationService) abandonRunLocked() {
	s.epoch++
	s.starting = false
	close(s.halt)
	s.halt = make(chan struct{})

	s.cancel(&s.settle)
	s.cancel(&s.tick)
	s.cancel(&s.advance)
	s.cancel(&s.uiSync)
}

func (s *NarrationService) hangUp(call repositories.VoiceCall) {
	if call == nil {
		return
	}
	if err := call.Stop(); err != nil {
		s.logger.Warn("Failed to stop voice call", zap.Error(err))
	}
}

// schedule arms slot to run fn with the lock held after d, unless the slot is
// rescheduled or cancelled, or the run is abandoned, first
func (s *NarrationService) schedule(slot *timerSlot, d time.Duration, fn func()) {
	s.cancel(slot)
	seq, epoch := slot.seq, s.epoch
	slot.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if slot.seq != seq || s.epoch != epoch {
			return
		}
		slot.timer = nil
		fn()
	})
}

func (s *NarrationService) cancel(slot *timerSlot) {
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
	}
	slot.seq++
}

func (s *NarrationService) setStatusLocked(status entities.NarrationStatus) {
	if s.status == status {
		return
	}
	metrics.NarrationStatusTransitions.WithLabelValues(string(s.status), string(status)).Inc()
	s.logger.Debug("Narration status changed",
		zap.String("from", string(s.status)),
		zap.String("to", string(status)))
	s.status = status

	if cb := s.callbacks.OnStatusChange; cb != nil {
		s.bus.post(func() { cb(status) })
	}
}

func (s *NarrationService) emitProgressLocked(spoken, total int) {
	if cb := s.callbacks.OnWordProgress; cb != nil {
		s.bus.post(func() { cb(spoken, total) })
	}
}

func (s *NarrationService) emitErrorLocked(message string) {
	if cb := s.callbacks.OnError; cb != nil {
		s.bus.post(func() { cb(message) })
	}
}
