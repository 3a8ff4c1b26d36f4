package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/stretchr/testify/require"
)

func testTiming() Timing {
	return Timing{
		GreetingLead:    5 * time.Millisecond,
		SilenceTimeout:  40 * time.Millisecond,
		NoInputTimeout:  5 * time.Second,
		ProcessingDelay: 10 * time.Millisecond,
		TransitionPause: 5 * time.Millisecond,
		Tick:            5 * time.Millisecond,
		StopTimeout:     200 * time.Millisecond,
		ClosingTimeout:  200 * time.Millisecond,
		PersistTimeout:  200 * time.Millisecond,
		HandoffTimeout:  200 * time.Millisecond,
	}
}

// manualClock is a wall clock that only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// slowStop holds Stop for a while of clock time, like a recognizer flush.
type slowStop struct {
	Transcriber
	clock *manualClock
	wait  time.Duration
}

func (s slowStop) Stop(ctx context.Context) (StopResult, error) {
	s.clock.Advance(s.wait)
	time.Sleep(20 * time.Millisecond)
	return s.Transcriber.Stop(ctx)
}

func testQuestions(n int) []interview.Question {
	return interview.DefaultQuestions()[:n]
}

type fakeSpeaker struct {
	mu    sync.Mutex
	texts []string
	delay time.Duration
	err   error
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	delay, err := s.delay, s.err
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (s *fakeSpeaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// captureScript drives one Start..Stop cycle of scriptedTranscriber.
type captureScript struct {
	partials []string
	every    time.Duration
	final    string
	startErr error
	stopErr  error
}

type scriptedTranscriber struct {
	mu       sync.Mutex
	scripts  []captureScript
	current  captureScript
	cancel   context.CancelFunc
	done     chan struct{}
	starts   int
	stops    int
	cancels  int
	lastSent time.Time
	stopped  []time.Duration
}

func (s *scriptedTranscriber) Start(ctx context.Context) (<-chan string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.starts++
	var script captureScript
	if len(s.scripts) > 0 {
		script, s.scripts = s.scripts[0], s.scripts[1:]
	}
	if script.startErr != nil {
		return nil, script.startErr
	}
	if script.every <= 0 {
		script.every = 5 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string)
	done := make(chan struct{})
	s.current, s.cancel, s.done = script, cancel, done
	s.lastSent = time.Time{}

	go func() {
		defer close(done)
		defer close(out)
		for _, p := range script.partials {
			select {
			case <-ctx.Done():
				return
			case <-time.After(script.every):
			}
			select {
			case <-ctx.Done():
				return
			case out <- p:
				s.mu.Lock()
				s.lastSent = time.Now()
				s.mu.Unlock()
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}

func (s *scriptedTranscriber) halt() bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (s *scriptedTranscriber) Stop(context.Context) (StopResult, error) {
	if !s.halt() {
		return StopResult{}, ErrNotCapturing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	if !s.lastSent.IsZero() {
		s.stopped = append(s.stopped, time.Since(s.lastSent))
	}
	if s.current.stopErr != nil {
		return StopResult{}, s.current.stopErr
	}
	return StopResult{Transcript: s.current.final, AudioDevice: "test"}, nil
}

func (s *scriptedTranscriber) Cancel(context.Context) error {
	if s.halt() {
		s.mu.Lock()
		s.cancels++
		s.mu.Unlock()
	}
	return nil
}

func (s *scriptedTranscriber) counts() (starts, stops, cancels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops, s.cancels
}

func answered(texts ...string) []captureScript {
	scripts := make([]captureScript, 0, len(texts))
	for _, text := range texts {
		scripts = append(scripts, captureScript{partials: []string{text}, final: text})
	}
	return scripts
}

type recordingStore struct {
	mu      sync.Mutex
	records []interview.Record
	err     error
}

func (s *recordingStore) Save(ctx context.Context, record interview.Record) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return s.err
}

func (s *recordingStore) Records() []interview.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interview.Record(nil), s.records...)
}

type recordingHandoff struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (h *recordingHandoff) Handoff(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, id)
	return h.err
}

func (h *recordingHandoff) IDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.ids...)
}

type recordingIndicator struct {
	mu     sync.Mutex
	phases []fsm.Phase
	errors []string
	cues   []string
}

func (i *recordingIndicator) ShowPhase(_ context.Context, p fsm.Phase, _ string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.phases = append(i.phases, p)
}

func (i *recordingIndicator) ShowError(_ context.Context, msg string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.errors = append(i.errors, msg)
}

func (i *recordingIndicator) cue(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cues = append(i.cues, name)
}

func (i *recordingIndicator) CueListen(context.Context)   { i.cue("listen") }
func (i *recordingIndicator) CueStop(context.Context)     { i.cue("stop") }
func (i *recordingIndicator) CueComplete(context.Context) { i.cue("complete") }
func (i *recordingIndicator) CueCancel(context.Context)   { i.cue("cancel") }
func (i *recordingIndicator) Hide(context.Context)        {}

func (i *recordingIndicator) Errors() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.errors...)
}

func (i *recordingIndicator) Cues() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.cues...)
}

// runAsync starts Run and returns a channel delivering its Result.
func runAsync(ctx context.Context, c *Controller) <-chan Result {
	done := make(chan Result, 1)
	go func() { done <- c.Run(ctx) }()
	return done
}

func waitForStatus(t *testing.T, c *Controller, cond func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := c.Status()
		if c.Active() && cond(st) {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("status condition not reached; last status %+v", c.Status())
	return Status{}
}

func waitForPhase(t *testing.T, c *Controller, phase fsm.Phase, index int) Status {
	t.Helper()
	return waitForStatus(t, c, func(st Status) bool {
		return st.Phase == phase && st.CurrentIndex == index
	})
}

func awaitResult(t *testing.T, done <-chan Result) Result {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for Run result")
		return Result{}
	}
}

var errBoom = errors.New("boom")

func requireSavedOnce(t *testing.T, store *recordingStore, id string) interview.Record {
	t.Helper()
	records := store.Records()
	require.Len(t, records, 1)
	require.Equal(t, id, records[0].ID)
	return records[0]
}
