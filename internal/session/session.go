// Package session runs one mock interview at a time: it sequences the
// interviewer's speech, captures each answer, and persists the result.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/ipc"
)

// Status is a point-in-time snapshot of the controller.
type Status struct {
	SessionID    string
	Phase        fsm.Phase
	CurrentIndex int
	Total        int
	Responses    int
	Elapsed      int
	Transcript   string
	Prompt       string
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	SessionID  string
	Phase      fsm.Phase
	Record     interview.Record
	Ended      bool
	Cancelled  bool
	// Saved reports that Record reached the store.
	Saved      bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Options wires the controller's collaborators. Nil fields fall back to
// silent or no-op implementations.
type Options struct {
	Speaker     Speaker
	Transcriber Transcriber
	Store       Store
	Handoff     Handoff
	Indicator   Indicator
	Timing      Timing
	// Capitalize applies sentence casing to recorded answers.
	Capitalize bool
	// Now reads the wall clock for elapsed time. Defaults to time.Now.
	Now func() time.Time
}

// Controller owns the interview state machine and serves IPC commands for it.
type Controller struct {
	logger     *slog.Logger
	questions  []interview.Question
	speaker    Speaker
	transcribe Transcriber
	store      Store
	handoff    Handoff
	indicator  Indicator
	timing     Timing
	capitalize bool
	now        func() time.Time

	mu     sync.RWMutex
	status Status
	active bool

	skips chan struct{}
	ends  chan struct{}
}

// NewController constructs a controller over questions with safe fallbacks.
func NewController(logger *slog.Logger, questions []interview.Question, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timing := opts.Timing.withDefaults()
	if opts.Speaker == nil {
		opts.Speaker = SpeakerFunc(func(context.Context, string) error { return nil })
	}
	if opts.Transcriber == nil {
		opts.Transcriber = NewFallbackTranscriber(time.Second)
	}
	if opts.Store == nil {
		opts.Store = StoreFunc(func(context.Context, interview.Record) error { return nil })
	}
	if opts.Handoff == nil {
		opts.Handoff = HandoffFunc(func(context.Context, string) error { return nil })
	}
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Controller{
		logger:     logger,
		questions:  append([]interview.Question(nil), questions...),
		speaker:    opts.Speaker,
		transcribe: opts.Transcriber,
		store:      opts.Store,
		handoff:    opts.Handoff,
		indicator:  opts.Indicator,
		timing:     timing,
		capitalize: opts.Capitalize,
		now:        opts.Now,
		status:     Status{Phase: fsm.PhaseSetup, Total: len(questions)},
		skips:      make(chan struct{}, 1),
		ends:       make(chan struct{}, 1),
	}
}

// Status returns the current snapshot.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Active reports whether a session is running.
func (c *Controller) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Run executes one interview from greeting to completion. It returns
// ErrSessionActive in Result.Err when another Run is in progress.
func (c *Controller) Run(ctx context.Context) Result {
	startedAt := time.Now()
	sess, err := c.begin(startedAt)
	if err != nil {
		return Result{Phase: c.Status().Phase, Err: err, StartedAt: startedAt, FinishedAt: time.Now()}
	}
	defer c.release()

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.indicator.Hide(cleanupCtx)
	}()

	r := newRun(c, sess)
	return r.loop(ctx)
}

// begin claims the controller for a new session.
func (c *Controller) begin(now time.Time) (interview.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return interview.Session{}, ErrSessionActive
	}
	sess, err := interview.NewSession(c.questions, now)
	if err != nil {
		return interview.Session{}, err
	}

	drain(c.skips)
	drain(c.ends)
	c.active = true
	c.status = Status{SessionID: sess.ID, Phase: fsm.PhaseSetup, Total: len(sess.Questions)}
	return sess, nil
}

func (c *Controller) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

func (c *Controller) publish(status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// Handle serves IPC commands for the running interview.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		st := c.Status()
		return ipc.Response{OK: true, Phase: string(st.Phase), Message: "status", Session: st.IPC()}
	case ipc.CommandSkip:
		return c.requestSkip()
	case ipc.CommandEnd:
		return c.requestEnd()
	default:
		return ipc.Response{OK: false, Phase: string(c.Status().Phase), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// RequestSkip asks the running session to skip the current question.
func (c *Controller) RequestSkip() ipc.Response { return c.requestSkip() }

// RequestEnd asks the running session to end early.
func (c *Controller) RequestEnd() ipc.Response { return c.requestEnd() }

func (c *Controller) requestSkip() ipc.Response {
	st, active := c.Status(), c.Active()
	if !active {
		return ipc.Response{OK: false, Phase: string(st.Phase), Error: "no active interview"}
	}
	if st.Phase != fsm.PhaseAsking && st.Phase != fsm.PhaseListening {
		return ipc.Response{OK: false, Phase: string(st.Phase), Error: fmt.Sprintf("cannot skip from phase %s", st.Phase)}
	}

	select {
	case c.skips <- struct{}{}:
		return ipc.Response{OK: true, Phase: string(st.Phase), Message: "skip requested"}
	default:
		return ipc.Response{OK: true, Phase: string(st.Phase), Message: "skip already requested"}
	}
}

func (c *Controller) requestEnd() ipc.Response {
	st, active := c.Status(), c.Active()
	if !active || st.Phase.Terminal() {
		return ipc.Response{OK: false, Phase: string(st.Phase), Error: "no active interview"}
	}

	select {
	case c.ends <- struct{}{}:
		return ipc.Response{OK: true, Phase: string(st.Phase), Message: "end requested"}
	default:
		return ipc.Response{OK: true, Phase: string(st.Phase), Message: "end already requested"}
	}
}

// IPC converts the snapshot to its wire form.
func (s Status) IPC() *ipc.SessionStatus {
	if s.SessionID == "" {
		return nil
	}
	question := s.CurrentIndex + 1
	if question > s.Total {
		question = s.Total
	}
	return &ipc.SessionStatus{
		ID:         s.SessionID,
		Question:   question,
		Total:      s.Total,
		Responses:  s.Responses,
		Elapsed:    s.Elapsed,
		Transcript: s.Transcript,
		Prompt:     s.Prompt,
	}
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
