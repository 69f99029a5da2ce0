package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/internal/metrics"
)

const (
	// slideAdvanceDelay is the pause between a slide completing and the UI moving on
	slideAdvanceDelay = 4 * time.Second
	// uiSyncDelay lets the UI settle on the new slide before narration begins
	uiSyncDelay = 2 * time.Second
)

// autoAdvanceState drives narration through a deck without manual navigation
type autoAdvanceState struct {
	slides       []entities.Slide
	title        string
	currentIndex int

	transitionInProgress bool

	onSlideComplete   func()
	onAutoAdvanceNext func()
}

func (a *autoAdvanceState) isLastSlide() bool {
	return a.currentIndex >= len(a.slides)-1
}

// StartAutoAdvancePresentation narrates every slide in order. onSlideComplete fires when
// a slide (other than the last) finishes and onAutoAdvanceNext when the UI should move
// to the next slide. Both are delivered on the callback dispatcher and may be nil.
func (s *NarrationService) StartAutoAdvancePresentation(ctx context.Context, slides []entities.Slide, title string, onSlideComplete, onAutoAdvanceNext func()) error {
	if s.voice == nil {
		return ErrServiceNotInitialized
	}
	if len(slides) == 0 {
		return ErrNoSlides
	}
	if err := checkNarratable(slides[0]); err != nil {
		return err
	}

	deck := entities.Deck{Title: title, Slides: slides}.Clone()

	s.mu.Lock()
	if s.starting {
		s.mu.Unlock()
		return ErrNarrationBusy
	}
	s.abandonRunLocked()
	s.explicitlyStopped = false
	s.auto = &autoAdvanceState{
		slides:            deck.Slides,
		title:             title,
		onSlideComplete:   onSlideComplete,
		onAutoAdvanceNext: onAutoAdvanceNext,
	}
	epoch := s.epoch
	s.mu.Unlock()

	s.logger.Info("Starting auto-advance presentation",
		zap.String("title", title),
		zap.Int("slides", len(slides)))

	err := s.startSlide(ctx, deck.Slides[0], 0, len(deck.Slides), title, epoch)
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.auto = nil
		}
		s.mu.Unlock()
	}
	return err
}

// completeSlideLocked runs when the settle timer after speech-end fires
func (s *NarrationService) completeSlideLocked() {
	sess := s.session
	if sess == nil {
		return
	}
	metrics.NarrationSlidesCompleted.Inc()

	if s.auto == nil {
		s.logger.Info("Slide narration complete", zap.Int("slideIndex", sess.slideIndex))
		s.stopAfterCompletionLocked()
		return
	}

	auto := s.auto
	if s.explicitlyStopped || auto.transitionInProgress {
		return
	}

	if auto.isLastSlide() {
		metrics.NarrationPresentationsCompleted.Inc()
		s.logger.Info("Auto-advance presentation complete", zap.Int("slides", len(auto.slides)))
		s.stopAfterCompletionLocked()
		return
	}

	auto.transitionInProgress = true
	s.setStatusLocked(entities.NarrationStatusTransitioning)
	s.bus.post(auto.onSlideComplete)

	s.schedule(&s.advance, slideAdvanceDelay, s.advanceSlideLocked)
}

// advanceSlideLocked moves the index and tells the UI, then waits for it to settle
func (s *NarrationService) advanceSlideLocked() {
	auto := s.auto
	if auto == nil || auto.isLastSlide() {
		return
	}

	auto.currentIndex++
	s.logger.Info("Advancing to next slide", zap.Int("slideIndex", auto.currentIndex))
	s.bus.post(auto.onAutoAdvanceNext)

	s.schedule(&s.uiSync, uiSyncDelay, s.presentCurrentSlideLocked)
}

func (s *NarrationService) presentCurrentSlideLocked() {
	auto := s.auto
	if auto == nil {
		return
	}
	auto.transitionInProgress = false

	index := auto.currentIndex
	slide := auto.slides[index]
	total := len(auto.slides)
	title := auto.title
	epoch := s.epoch

	go s.presentAutoSlide(epoch, slide, index, total, title)
}

// presentAutoSlide starts the next slide of an auto-advance run. Failures halt the run
// and are reported through the error callback since there is no caller to return them to.
func (s *NarrationService) presentAutoSlide(epoch uint64, slide entities.Slide, index, total int, title string) {
	err := s.startSlide(context.Background(), slide, index, total, title, epoch)
	if err == nil || errors.Is(err, ErrNarrationCancelled) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}

	s.logger.Error("Auto-advance halted", zap.Int("slideIndex", index), zap.Error(err))
	s.haltAutoAdvanceLocked()
	s.setStatusLocked(entities.NarrationStatusError)
	s.emitErrorLocked(err.Error())
}

// stopAfterCompletionLocked ends narration from a timer; the call is hung up off the lock
func (s *NarrationService) stopAfterCompletionLocked() {
	if call := s.stopLocked(); call != nil {
		go s.hangUp(call)
	}
}

// haltAutoAdvanceLocked leaves auto-advance mode without touching the current call
func (s *NarrationService) haltAutoAdvanceLocked() {
	s.cancel(&s.advance)
	s.cancel(&s.uiSync)
	s.auto = nil
}
