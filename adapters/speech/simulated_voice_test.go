package speech

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/slidecast/domain/repositories"
)

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) OnCallStart() { l.add("call-start") }
func (l *recordingListener) OnSpeechStart() { l.add("speech-start") }
func (l *recordingListener) OnSpeechEnd() { l.add("speech-end") }
func (l *recordingListener) OnCallEnd() { l.add("call-end") }
func (l *recordingListener) OnError(msg string) { l.add("error:" + msg) }
func (l *recordingListener) OnTranscript(tr repositories.Transcript) {
	kind := "partial"
	if tr.Final {
		kind = "final"
	}
	l.add(kind + ":" + tr.Text)
}

func (l *recordingListener) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *recordingListener) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return ""
	}
	return l.events[len(l.events)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSimulatedVoiceTimeline(t *testing.T) {
	mock := clock.NewMock()
	voice := NewSimulatedVoice(mock, 2, zaptest.NewLogger(t))
	listener := &recordingListener{}

	call, err := voice.Start(context.Background(), repositories.CallRequest{FirstMessage: "one two three"}, listener)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	steps := []struct {
		advance time.Duration
		want    string
	}{
		{connectDelay, "call-start"},
		{speechStartDelay, "speech-start"},
		{500 * time.Millisecond, "partial:one"},
		{500 * time.Millisecond, "partial:one two"},
		{500 * time.Millisecond, "speech-end"},
		{hangUpDelay, "call-end"},
	}
	for _, step := range steps {
		mock.Add(step.advance)
		waitFor(t, step.want, func() bool { return listener.last() == step.want })
	}

	events := listener.snapshot()
	if events[len(events)-3] != "final:one two three" {
		t.Errorf("expected final transcript before speech-end, got %v", events)
	}

	// Stopping an ended call is harmless and silent
	if err := call.Stop(); err != nil {
		t.Errorf("Stop after hang up failed: %v", err)
	}
	if got := len(listener.snapshot()); got != len(events) {
		t.Errorf("expected no events after stop, got %v", listener.snapshot())
	}
}

func TestSimulatedVoiceMuteFreezesTimeline(t *testing.T) {
	mock := clock.NewMock()
	voice := NewSimulatedVoice(mock, 2, zaptest.NewLogger(t))
	listener := &recordingListener{}

	call, err := voice.Start(context.Background(), repositories.CallRequest{FirstMessage: "alpha beta gamma"}, listener)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	mock.Add(connectDelay)
	waitFor(t, "call-start", func() bool { return listener.last() == "call-start" })
	mock.Add(speechStartDelay)
	waitFor(t, "speech-start", func() bool { return listener.last() == "speech-start" })
	mock.Add(500 * time.Millisecond)
	waitFor(t, "first word", func() bool { return listener.last() == "partial:alpha" })

	if err := call.SetMuted(true); err != nil {
		t.Fatalf("mute failed: %v", err)
	}
	mock.Add(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if listener.last() != "partial:alpha" {
		t.Fatalf("muted call kept speaking: %v", listener.snapshot())
	}

	if err := call.SetMuted(false); err != nil {
		t.Fatalf("unmute failed: %v", err)
	}
	mock.Add(500 * time.Millisecond)
	waitFor(t, "second word", func() bool { return listener.last() == "partial:alpha beta" })
}

func TestSimulatedVoiceStop(t *testing.T) {
	mock := clock.NewMock()
	voice := NewSimulatedVoice(mock, 2, zaptest.NewLogger(t))
	listener := &recordingListener{}

	call, err := voice.Start(context.Background(), repositories.CallRequest{FirstMessage: "one two three four"}, listener)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	mock.Add(connectDelay)
	waitFor(t, "call-start", func() bool { return listener.last() == "call-start" })

	if err := call.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := call.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}

	mock.Add(10 * time.Second)
	time.Sleep(20 * time.Millisecond)

	events := listener.snapshot()
	if strings.Join(events, ",") != "call-start,call-end" {
		t.Errorf("expected a single call-end after stop, got %v", events)
	}
	if err := call.SetMuted(true); err == nil {
		t.Error("expected muting an ended call to fail")
	}
}

func TestSimulatedVoiceRejectsEmptyScript(t *testing.T) {
	voice := NewSimulatedVoice(clock.NewMock(), 2, zaptest.NewLogger(t))
	if _, err := voice.Start(context.Background(), repositories.CallRequest{FirstMessage: "   "}, &recordingListener{}); err == nil {
		t.Error("expected error for an empty script")
	}
}
