package usecase

import (
	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/domain/repositories"
	"github.com/satriahrh/slidecast/internal/metrics"
)

// callListener routes the events of one call into the service. Events of a call that
// is no longer current are dropped.
type callListener struct {
	service *NarrationService
	callID  string
}

func (l *callListener) OnCallStart() {
	l.service.handle(l.callID, l.service.onCallStartLocked)
}

func (l *callListener) OnSpeechStart() {
	l.service.handle(l.callID, l.service.onSpeechStartLocked)
}

func (l *callListener) OnSpeechEnd() {
	l.service.handle(l.callID, l.service.onSpeechEndLocked)
}

func (l *callListener) OnCallEnd() {
	l.service.handle(l.callID, l.service.onCallEndLocked)
}

func (l *callListener) OnError(message string) {
	l.service.handle(l.callID, func() { l.service.onErrorLocked(message) })
}

func (l *callListener) OnTranscript(transcript repositories.Transcript) {
	l.service.handle(l.callID, func() { l.service.onTranscriptLocked(transcript) })
}

func (s *NarrationService) handle(callID string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if callID == "" || callID != s.callID || s.session == nil {
		return
	}
	fn()
}

func (s *NarrationService) onCallStartLocked() {
	sess := s.session
	s.setStatusLocked(entities.NarrationStatusConnected)
	if !sess.heardSpeech {
		sess.spoken = 0
		sess.estimate = 0
	}
	s.emitProgressLocked(sess.spoken, sess.total)
}

func (s *NarrationService) onSpeechStartLocked() {
	sess := s.session
	s.setStatusLocked(entities.NarrationStatusSpeaking)
	s.cancel(&s.settle)

	// Only the first speech-start of a call resets progress; later ones would move
	// the highlight backwards.
	if !sess.heardSpeech {
		sess.spoken = 0
		sess.estimate = 0
		s.emitProgressLocked(0, sess.total)
	}
	sess.heardSpeech = true
	sess.speaking = true

	if !s.paused {
		s.startTickingLocked()
	}
}

func (s *NarrationService) onSpeechEndLocked() {
	sess := s.session
	sess.speaking = false
	s.cancel(&s.tick)

	sess.spoken = sess.total
	sess.estimate = float64(sess.total)
	s.emitProgressLocked(sess.total, sess.total)

	s.schedule(&s.settle, speechSettleDelay, s.completeSlideLocked)
}

func (s *NarrationService) onCallEndLocked() {
	sess := s.session
	sess.hasEnded = true
	sess.speaking = false
	s.call = nil
	s.paused = false
	s.cancel(&s.tick)

	terminal := s.explicitlyStopped || s.auto == nil || s.auto.isLastSlide()
	if terminal {
		sess.spoken = sess.total
		s.setStatusLocked(entities.NarrationStatusStopped)
		s.emitProgressLocked(sess.total, sess.total)
		s.logger.Info("Narration call ended", zap.Int("slideIndex", sess.slideIndex))
		return
	}

	s.setStatusLocked(entities.NarrationStatusTransitioning)

	// A call that hangs up before speech-end still has to complete the slide
	if s.settle.timer == nil && !s.auto.transitionInProgress {
		sess.spoken = sess.total
		s.emitProgressLocked(sess.total, sess.total)
		s.schedule(&s.settle, speechSettleDelay, s.completeSlideLocked)
	}
}

func (s *NarrationService) onErrorLocked(message string) {
	if IsBenignTermination(message) && s.auto != nil && !s.explicitlyStopped {
		metrics.NarrationBenignErrors.Inc()
		s.logger.Debug("Ignoring call termination during auto-advance", zap.String("message", message))
		return
	}

	metrics.NarrationGenuineErrors.Inc()
	s.logger.Error("Narration call failed", zap.String("message", message))

	s.session.speaking = false
	s.cancel(&s.tick)
	s.cancel(&s.settle)
	s.haltAutoAdvanceLocked()
	s.setStatusLocked(entities.NarrationStatusError)
	s.emitErrorLocked(message)
}

func (s *NarrationService) onTranscriptLocked(transcript repositories.Transcript) {
	if transcript.Role != repositories.AssistantRole {
		return
	}

	sess := s.session
	candidate := EstimateSpokenCount(sess.scriptWords, transcript.Text, sess.spoken)
	if candidate <= sess.spoken {
		return
	}

	sess.spoken = candidate
	sess.lastTranscriptAt = s.clock.Now()
	if sess.estimate < float64(candidate) {
		sess.estimate = float64(candidate)
	}
	s.emitProgressLocked(sess.spoken, sess.total)
}

func (s *NarrationService) startTickingLocked() {
	s.schedule(&s.tick, progressTickInterval, s.onTickLocked)
}

// onTickLocked advances the estimate by time while transcripts are not landing
func (s *NarrationService) onTickLocked() {
	sess := s.session
	if sess == nil || !sess.speaking || s.paused {
		return
	}

	if sess.lastTranscriptAt.IsZero() || s.clock.Since(sess.lastTranscriptAt) >= transcriptStaleAfter {
		estimate, candidate := advanceByTime(sess.estimate, sess.spoken, sess.total)
		sess.estimate = estimate
		if candidate > sess.spoken {
			sess.spoken = candidate
			s.emitProgressLocked(sess.spoken, sess.total)
		}
	}

	s.startTickingLocked()
}
