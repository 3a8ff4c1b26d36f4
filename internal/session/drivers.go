package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
)

var (
	// ErrSessionActive indicates Run was called while another session is non-terminal.
	ErrSessionActive = errors.New("interview session already active")
	// ErrNotCapturing indicates Stop or Cancel was called without an active capture.
	ErrNotCapturing = errors.New("no active capture")
)

// Speaker plays one interviewer utterance and returns once it has finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// SpeakerFunc adapts a function to the Speaker interface.
type SpeakerFunc func(context.Context, string) error

func (f SpeakerFunc) Speak(ctx context.Context, text string) error {
	return f(ctx, text)
}

// StopResult is the transcriber output consumed by the session controller.
type StopResult struct {
	Transcript    string
	AudioDevice   string
	BytesCaptured int64
}

// Transcriber captures one spoken answer at a time.
// Start streams cumulative partial transcripts until Stop or Cancel.
type Transcriber interface {
	Start(context.Context) (<-chan string, error)
	Stop(context.Context) (StopResult, error)
	Cancel(context.Context) error
}

// Store persists completed session records.
type Store interface {
	Save(context.Context, interview.Record) error
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(context.Context, interview.Record) error

func (f StoreFunc) Save(ctx context.Context, record interview.Record) error {
	return f(ctx, record)
}

// Handoff receives the identifier of every completed session.
type Handoff interface {
	Handoff(ctx context.Context, sessionID string) error
}

// HandoffFunc adapts a function to the Handoff interface.
type HandoffFunc func(context.Context, string) error

func (f HandoffFunc) Handoff(ctx context.Context, sessionID string) error {
	return f(ctx, sessionID)
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowPhase(context.Context, fsm.Phase, string)
	ShowError(context.Context, string)
	CueListen(context.Context)
	CueStop(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowPhase(context.Context, fsm.Phase, string) {}
func (noopIndicator) ShowError(context.Context, string)            {}
func (noopIndicator) CueListen(context.Context)                    {}
func (noopIndicator) CueStop(context.Context)                      {}
func (noopIndicator) CueComplete(context.Context)                  {}
func (noopIndicator) CueCancel(context.Context)                    {}
func (noopIndicator) Hide(context.Context)                         {}

// FallbackTranscriber stands in for a recognizer: it reports a fixed
// transcript once Delay has passed and keeps the capture open until stopped.
type FallbackTranscriber struct {
	Delay time.Duration
	Text  string

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	emitted bool
}

// NewFallbackTranscriber returns a fallback emitting FallbackTranscript after delay.
func NewFallbackTranscriber(delay time.Duration) *FallbackTranscriber {
	return &FallbackTranscriber{Delay: delay, Text: FallbackTranscript}
}

func (f *FallbackTranscriber) Start(ctx context.Context) (<-chan string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return nil, errors.New("capture already active")
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan string, 1)
	done := make(chan struct{})
	f.cancel = cancel
	f.done = done
	f.emitted = false

	go func() {
		defer close(done)
		defer close(out)

		timer := time.NewTimer(f.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		f.mu.Lock()
		f.emitted = true
		f.mu.Unlock()

		select {
		case out <- f.Text:
		case <-ctx.Done():
			return
		}
		<-ctx.Done()
	}()

	return out, nil
}

func (f *FallbackTranscriber) Stop(context.Context) (StopResult, error) {
	if !f.halt() {
		return StopResult{}, ErrNotCapturing
	}

	f.mu.Lock()
	emitted := f.emitted
	f.mu.Unlock()

	result := StopResult{AudioDevice: "fallback"}
	if emitted {
		result.Transcript = f.Text
	}
	return result, nil
}

func (f *FallbackTranscriber) Cancel(context.Context) error {
	f.halt()
	return nil
}

// halt ends the active capture and waits for its goroutine.
func (f *FallbackTranscriber) halt() bool {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel = nil
	f.done = nil
	f.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}
