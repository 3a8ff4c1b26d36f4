package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/transcript"
)

type delayKind int

const (
	delayNone delayKind = iota
	delayGreeting
	delayPrompt
	delayAdvance
)

type outcome int

const (
	outcomeFinished outcome = iota + 1
	outcomeEnded
	outcomeCancelled
)

type speechResult struct {
	gen uint64
	err error
}

// run is the single owner of one session's mutable state. Only the loop
// goroutine touches its fields; drivers report back over channels.
type run struct {
	c      *Controller
	logger *slog.Logger

	session interview.Session
	phase   fsm.Phase

	speechGen    uint64
	speechCancel context.CancelFunc
	speechDone   chan speechResult

	capturing   bool
	partials    <-chan string
	heard       string
	listenStart time.Time

	silence  *time.Timer
	noInput  *time.Timer
	delay    *time.Timer
	delayFor delayKind
	clock    *time.Ticker
	finished bool

	quit    chan struct{}
	drivers sync.WaitGroup
}

func newRun(c *Controller, sess interview.Session) *run {
	return &run{
		c:          c,
		logger:     c.logger.With("session_id", sess.ID),
		session:    sess,
		phase:      fsm.PhaseSetup,
		speechDone: make(chan speechResult, 1),
		quit:       make(chan struct{}),
	}
}

func (r *run) loop(ctx context.Context) Result {
	startedAt := r.c.now()
	r.logger.Info("interview start", "questions", len(r.session.Questions))

	r.clock = time.NewTicker(r.c.timing.Tick)
	r.transition(ctx, fsm.EventStart)
	r.schedule(delayGreeting, r.c.timing.GreetingLead)

	for {
		if r.finished {
			return r.complete(ctx, outcomeFinished, startedAt)
		}

		select {
		case <-ctx.Done():
			return r.complete(ctx, outcomeCancelled, startedAt)
		case <-r.c.ends:
			r.logger.Info("end requested", "phase", string(r.phase))
			return r.complete(ctx, outcomeEnded, startedAt)
		case <-r.c.skips:
			r.skip(ctx)
		case res := <-r.speechDone:
			if res.gen != r.speechGen {
				continue
			}
			r.speechCancel = nil
			r.onSpoken(ctx, res.err)
		case text, ok := <-r.partials:
			r.onPartial(ctx, text, ok)
		case <-timerC(r.silence):
			r.silence = nil
			r.finalize(ctx, "silence")
		case <-timerC(r.noInput):
			r.noInput = nil
			r.finalize(ctx, "no input")
		case <-timerC(r.delay):
			kind := r.delayFor
			r.delay, r.delayFor = nil, delayNone
			r.onDelay(ctx, kind)
		case <-tickerC(r.clock):
			r.session.TotalDuration = elapsedSeconds(startedAt, r.c.now())
			r.publish()
		}
	}
}

func (r *run) onDelay(ctx context.Context, kind delayKind) {
	switch kind {
	case delayGreeting:
		r.say(ctx, GreetingText)
	case delayPrompt:
		if q, ok := r.session.Current(); ok {
			r.say(ctx, promptText(r.session.CurrentIndex, q.Text))
		}
	case delayAdvance:
		r.advance(ctx)
	}
}

func (r *run) onSpoken(ctx context.Context, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("speech failed", "phase", string(r.phase), "error", err.Error())
	}

	switch r.phase {
	case fsm.PhaseGreeting:
		if r.transition(ctx, fsm.EventSpoken) {
			r.enterAsking(ctx)
		}
	case fsm.PhaseAsking:
		if r.transition(ctx, fsm.EventSpoken) {
			r.startListening(ctx)
		}
	}
}

// enterAsking introduces the current question. The first question follows
// the greeting directly; later ones follow a short pause.
func (r *run) enterAsking(ctx context.Context) {
	q, ok := r.session.Current()
	if !ok {
		r.finished = true
		return
	}
	r.heard = ""
	r.publish()
	if r.session.CurrentIndex == 0 {
		r.say(ctx, promptText(0, q.Text))
		return
	}
	r.schedule(delayPrompt, r.c.timing.TransitionPause)
}

func (r *run) startListening(ctx context.Context) {
	r.heard = ""
	r.listenStart = time.Now()

	partials, err := r.c.transcribe.Start(ctx)
	if err != nil {
		r.logger.Error("capture start failed", "question_id", r.questionID(), "error", err.Error())
		r.c.indicator.ShowError(ctx, "Unable to start recording")
		r.finalize(ctx, "capture failed")
		return
	}

	r.capturing = true
	r.partials = partials
	r.noInput = time.NewTimer(r.c.timing.NoInputTimeout)
	r.c.indicator.CueListen(ctx)
}

func (r *run) onPartial(ctx context.Context, text string, ok bool) {
	if !ok {
		r.partials = nil
		r.finalize(ctx, "capture ended")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" || r.phase != fsm.PhaseListening {
		return
	}

	r.heard = text
	stopTimer(&r.noInput)
	stopTimer(&r.silence)
	r.silence = time.NewTimer(r.c.timing.SilenceTimeout)
	r.publish()
}

// finalize closes the capture for the current question and records the answer.
func (r *run) finalize(ctx context.Context, reason string) {
	if r.phase != fsm.PhaseListening {
		return
	}
	stopTimer(&r.silence)
	stopTimer(&r.noInput)

	text := r.heard
	if r.capturing {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.c.timing.StopTimeout)
		res, err := r.c.transcribe.Stop(stopCtx)
		cancel()
		r.capturing, r.partials = false, nil
		switch {
		case err != nil:
			r.logger.Warn("capture stop failed", "question_id", r.questionID(), "error", err.Error())
		case strings.TrimSpace(res.Transcript) != "":
			text = res.Transcript
		}
		if err == nil {
			r.logger.Debug("capture stopped",
				"audio_device", res.AudioDevice,
				"bytes_captured", res.BytesCaptured,
			)
		}
	}
	r.c.indicator.CueStop(ctx)

	answer := transcript.Normalize(text, transcript.Options{CapitalizeSentences: r.c.capitalize})
	if !r.transition(ctx, fsm.EventFinalize) {
		return
	}

	now := time.Now()
	resp, recorded := r.session.Record(answer, now.Sub(r.listenStart), now)
	r.heard = answer
	r.publish()
	r.logger.Info("answer finalized",
		"question_id", r.questionID(),
		"reason", reason,
		"recorded", recorded,
		"duration_s", resp.Duration,
		"chars", len(answer),
	)

	if !recorded {
		r.advance(ctx)
		return
	}
	r.schedule(delayAdvance, r.c.timing.ProcessingDelay)
}

// skip abandons the current question without recording an answer.
func (r *run) skip(ctx context.Context) {
	if r.phase != fsm.PhaseAsking && r.phase != fsm.PhaseListening {
		r.logger.Debug("skip ignored", "phase", string(r.phase))
		return
	}
	r.cancelSpeech()
	r.cancelDelay()
	stopTimer(&r.silence)
	stopTimer(&r.noInput)
	r.cancelCapture(ctx)

	if !r.transition(ctx, fsm.EventSkip) {
		return
	}
	r.logger.Info("question skipped", "question_id", r.questionID())
	r.advance(ctx)
}

func (r *run) advance(ctx context.Context) {
	if !r.session.Advance() {
		r.finished = true
		return
	}
	if r.transition(ctx, fsm.EventNext) {
		r.enterAsking(ctx)
	}
}

func (r *run) complete(ctx context.Context, how outcome, startedAt time.Time) Result {
	event := fsm.EventEnd
	if how == outcomeFinished {
		event = fsm.EventFinish
	}
	if !r.phase.Terminal() {
		r.transition(ctx, event)
	}

	r.cancelSpeech()
	r.cancelDelay()
	stopTimer(&r.silence)
	stopTimer(&r.noInput)
	r.cancelCapture(ctx)
	if r.clock != nil {
		r.clock.Stop()
		r.clock = nil
	}

	finishedAt := r.c.now()
	r.session.TotalDuration = elapsedSeconds(startedAt, finishedAt)
	record := r.session.Finish(finishedAt)
	r.publish()

	result := Result{
		SessionID: r.session.ID,
		Phase:     r.phase,
		Record:    record,
		Ended:     how == outcomeEnded,
		Cancelled: how == outcomeCancelled,
		StartedAt: startedAt,
	}

	saveErr := r.persist(ctx, record)
	result.Saved = saveErr == nil

	if how == outcomeCancelled {
		r.c.indicator.CueCancel(context.Background())
		r.c.indicator.ShowError(context.Background(), "Cancelled")
		result.Err = errors.Join(ctx.Err(), saveErr)
		return r.finish(result)
	}

	r.c.indicator.CueComplete(ctx)
	closingCtx, cancel := context.WithTimeout(ctx, r.c.timing.ClosingTimeout)
	if err := r.c.speaker.Speak(closingCtx, ClosingText); err != nil {
		r.logger.Warn("closing speech failed", "error", err.Error())
	}
	cancel()

	var handoffErr error
	if saveErr != nil {
		r.logger.Warn("handoff skipped", "reason", "record not saved")
	} else {
		handoffCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.c.timing.HandoffTimeout)
		handoffErr = r.c.handoff.Handoff(handoffCtx, record.ID)
		cancel()
		if handoffErr != nil {
			r.logger.Error("handoff failed", "error", handoffErr.Error())
		}
	}

	result.Err = errors.Join(saveErr, handoffErr)
	return r.finish(result)
}

func (r *run) finish(result Result) Result {
	close(r.quit)
	r.drivers.Wait()

	result.FinishedAt = time.Now()
	fields := []any{
		"phase", string(result.Phase),
		"responses", len(result.Record.Responses),
		"questions", len(result.Record.Questions),
		"total_duration_s", result.Record.TotalDuration,
		"ended", result.Ended,
		"cancelled", result.Cancelled,
	}
	if result.Err != nil {
		r.logger.Error("interview failed", append(fields, "error", result.Err.Error())...)
	} else {
		r.logger.Info("interview complete", fields...)
	}
	return result
}

// persist saves the record exactly once, even when ctx is already cancelled.
func (r *run) persist(ctx context.Context, record interview.Record) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.c.timing.PersistTimeout)
	defer cancel()
	if err := r.c.store.Save(saveCtx, record); err != nil {
		r.logger.Error("save record failed", "error", err.Error())
		return err
	}
	return nil
}

func (r *run) transition(ctx context.Context, event fsm.Event) bool {
	next, err := fsm.Transition(r.phase, event)
	if err != nil {
		r.logger.Warn("transition rejected", "error", err.Error())
		return false
	}
	r.logger.Debug("phase transition", "from", string(r.phase), "event", string(event), "to", string(next))
	r.phase = next
	r.publish()
	r.c.indicator.ShowPhase(ctx, next, PhaseMessage(next, r.session.CurrentIndex, len(r.session.Questions)))
	return true
}

func (r *run) publish() {
	status := Status{
		SessionID:    r.session.ID,
		Phase:        r.phase,
		CurrentIndex: r.session.CurrentIndex,
		Total:        len(r.session.Questions),
		Responses:    len(r.session.Responses),
		Elapsed:      r.session.TotalDuration,
		Transcript:   r.heard,
	}
	if q, ok := r.session.Current(); ok {
		status.Prompt = q.Text
	}
	r.c.publish(status)
}

// say starts an utterance on a driver goroutine. Only the latest
// utterance's completion is acted on.
func (r *run) say(ctx context.Context, text string) {
	r.cancelSpeech()
	r.speechGen++
	gen := r.speechGen

	speakCtx, cancel := context.WithCancel(ctx)
	r.speechCancel = cancel
	r.drivers.Add(1)
	go func() {
		defer r.drivers.Done()
		defer cancel()
		err := r.c.speaker.Speak(speakCtx, text)
		select {
		case r.speechDone <- speechResult{gen: gen, err: err}:
		case <-r.quit:
		}
	}()
}

func (r *run) cancelSpeech() {
	if r.speechCancel == nil {
		return
	}
	r.speechCancel()
	r.speechCancel = nil
	r.speechGen++
}

func (r *run) schedule(kind delayKind, d time.Duration) {
	r.cancelDelay()
	r.delay = time.NewTimer(d)
	r.delayFor = kind
}

func (r *run) cancelDelay() {
	stopTimer(&r.delay)
	r.delayFor = delayNone
}

func (r *run) cancelCapture(ctx context.Context) {
	if !r.capturing {
		return
	}
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.c.timing.StopTimeout)
	defer cancel()
	if err := r.c.transcribe.Cancel(cancelCtx); err != nil {
		r.logger.Warn("capture cancel failed", "error", err.Error())
	}
	r.capturing, r.partials = false, nil
}

func (r *run) questionID() int {
	if q, ok := r.session.Current(); ok {
		return q.ID
	}
	return 0
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// elapsedSeconds is whole seconds between start and now. Ticks only
// refresh the published value.
func elapsedSeconds(start, now time.Time) int {
	if d := now.Sub(start); d > 0 {
		return int(d / time.Second)
	}
	return 0
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
