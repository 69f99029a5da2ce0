package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/repositories"
)

const (
	connectDelay     = 200 * time.Millisecond
	speechStartDelay = 300 * time.Millisecond
	hangUpDelay      = 1 * time.Second
)

// SimulatedVoice is a stand-in voice vendor that "speaks" the script on a clock,
// reporting cumulative transcripts word by word. Useful for local runs without a
// vendor account.
type SimulatedVoice struct {
	clock          clock.Clock
	wordsPerSecond float64
	logger         *zap.Logger
}

// NewSimulatedVoice creates a simulated voice speaking at wordsPerSecond
func NewSimulatedVoice(clk clock.Clock, wordsPerSecond float64, logger *zap.Logger) *SimulatedVoice {
	if clk == nil {
		clk = clock.New()
	}
	if wordsPerSecond <= 0 {
		wordsPerSecond = 2.5
	}
	return &SimulatedVoice{
		clock:          clk,
		wordsPerSecond: wordsPerSecond,
		logger:         logger,
	}
}

// Start implements repositories.VoiceProvider
func (v *SimulatedVoice) Start(ctx context.Context, req repositories.CallRequest, listener repositories.CallListener) (repositories.VoiceCall, error) {
	words := strings.Fields(req.FirstMessage)
	if len(words) == 0 {
		return nil, errors.New("simulated voice: nothing to say")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	call := &simulatedCall{
		id:       uuid.NewString(),
		clock:    v.clock,
		interval: time.Duration(float64(time.Second) / v.wordsPerSecond),
		words:    words,
		listener: listener,
		logger:   v.logger,
	}

	v.logger.Info("Simulated call started",
		zap.String("callID", call.id),
		zap.Int("words", len(words)),
		zap.Float64("wordsPerSecond", v.wordsPerSecond))

	call.mu.Lock()
	call.scheduleLocked(connectDelay, call.connect)
	call.mu.Unlock()
	return call, nil
}

type simulatedCall struct {
	id       string
	clock    clock.Clock
	interval time.Duration
	words    []string
	listener repositories.CallListener
	logger   *zap.Logger

	mu       sync.Mutex
	timer    *clock.Timer
	gen      uint64
	spoken   int
	speaking bool
	muted    bool
	ended    bool
}

// scheduleLocked replaces the pending step with fn after d. fn runs without the lock
// and returns the listener notifications to deliver.
func (c *simulatedCall) scheduleLocked(d time.Duration, fn func() []func()) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		if c.gen != gen || c.ended {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		notify := fn()
		c.mu.Unlock()

		for _, n := range notify {
			n()
		}
	})
}

func (c *simulatedCall) connect() []func() {
	c.scheduleLocked(speechStartDelay, c.beginSpeech)
	return []func(){c.listener.OnCallStart}
}

func (c *simulatedCall) beginSpeech() []func() {
	c.speaking = true
	if !c.muted {
		c.scheduleLocked(c.interval, c.speakWord)
	}
	return []func(){c.listener.OnSpeechStart}
}

func (c *simulatedCall) speakWord() []func() {
	c.spoken++
	text := strings.Join(c.words[:c.spoken], " ")

	if c.spoken < len(c.words) {
		c.scheduleLocked(c.interval, c.speakWord)
		return []func(){func() {
			c.listener.OnTranscript(repositories.Transcript{Role: repositories.AssistantRole, Text: text})
		}}
	}

	c.speaking = false
	c.scheduleLocked(hangUpDelay, c.hangUp)
	return []func(){
		func() {
			c.listener.OnTranscript(repositories.Transcript{Role: repositories.AssistantRole, Text: text, Final: true})
		},
		c.listener.OnSpeechEnd,
	}
}

func (c *simulatedCall) hangUp() []func() {
	c.ended = true
	c.logger.Debug("Simulated call hung up", zap.String("callID", c.id))
	return []func(){c.listener.OnCallEnd}
}

// Stop implements repositories.VoiceCall
func (c *simulatedCall) Stop() error {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return nil
	}
	c.ended = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.logger.Debug("Simulated call stopped", zap.String("callID", c.id))
	c.listener.OnCallEnd()
	return nil
}

// SetMuted implements repositories.VoiceCall. Muting freezes the word timeline.
func (c *simulatedCall) SetMuted(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended {
		return errors.New("simulated voice: call has ended")
	}
	if c.muted == muted {
		return nil
	}
	c.muted = muted

	if muted {
		if c.speaking && c.timer != nil {
			c.timer.Stop()
			c.timer = nil
			c.gen++
		}
		return nil
	}

	if c.speaking {
		c.scheduleLocked(c.interval, c.speakWord)
	}
	return nil
}
