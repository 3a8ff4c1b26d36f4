package session

import (
	"context"
	"testing"
	"time"

	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/stretchr/testify/require"
)

func TestHandleRejectsCommandsWithoutActiveSession(t *testing.T) {
	c := NewController(nil, testQuestions(1), Options{Timing: testTiming()})

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandSkip})
	require.False(t, resp.OK)
	require.Equal(t, "no active interview", resp.Error)

	resp = c.Handle(context.Background(), ipc.Request{Command: ipc.CommandEnd})
	require.False(t, resp.OK)
	require.Equal(t, "no active interview", resp.Error)

	resp = c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "setup", resp.Phase)
	require.Nil(t, resp.Session)

	resp = c.Handle(context.Background(), ipc.Request{Command: "toggle"})
	require.False(t, resp.OK)
	require.Equal(t, "unknown command: toggle", resp.Error)
}

func TestRequestSkipOutsideAnsweringPhases(t *testing.T) {
	c := NewController(nil, testQuestions(1), Options{Timing: testTiming()})
	c.active = true
	c.status = Status{SessionID: "s", Phase: fsm.PhaseProcessing, Total: 1}

	resp := c.RequestSkip()
	require.False(t, resp.OK)
	require.Equal(t, "cannot skip from phase processing", resp.Error)
}

func TestRequestsCoalesceWhilePending(t *testing.T) {
	c := NewController(nil, testQuestions(1), Options{Timing: testTiming()})
	c.active = true
	c.status = Status{SessionID: "s", Phase: fsm.PhaseListening, Total: 1}

	require.Equal(t, "skip requested", c.RequestSkip().Message)
	require.Equal(t, "skip already requested", c.RequestSkip().Message)
	require.Equal(t, "end requested", c.RequestEnd().Message)
	require.Equal(t, "end already requested", c.RequestEnd().Message)
}

func TestRunWithoutQuestionsFails(t *testing.T) {
	c := NewController(nil, nil, Options{Timing: testTiming()})
	res := c.Run(context.Background())
	require.ErrorIs(t, res.Err, interview.ErrNoQuestions)
	require.False(t, c.Active())
}

func TestStatusIPCClampsQuestionNumber(t *testing.T) {
	st := Status{SessionID: "id", Phase: fsm.PhaseComplete, CurrentIndex: 3, Total: 3, Responses: 2, Elapsed: 61}
	wire := st.IPC()
	require.Equal(t, 3, wire.Question)
	require.Equal(t, 2, wire.Responses)
	require.Equal(t, 61, wire.Elapsed)
	require.Nil(t, Status{}.IPC())
}

func TestPhaseMessages(t *testing.T) {
	require.Equal(t, "AI is introducing the interview...", PhaseMessage(fsm.PhaseGreeting, 0, 5))
	require.Equal(t, "AI is asking question 2 of 5...", PhaseMessage(fsm.PhaseAsking, 1, 5))
	require.Equal(t, "Listening to your response...", PhaseMessage(fsm.PhaseListening, 1, 5))
	require.Equal(t, "Analyzing your response...", PhaseMessage(fsm.PhaseProcessing, 1, 5))
	require.Equal(t, "Interview complete! Generating report...", PhaseMessage(fsm.PhaseComplete, 5, 5))
	require.Empty(t, PhaseMessage(fsm.PhaseSetup, 0, 5))
}

func TestPromptText(t *testing.T) {
	require.Equal(t, "Q1", promptText(0, "Q1"))
	require.Equal(t, TransitionText+" Q2", promptText(1, "Q2"))
}

func TestTimingDefaultsFillZeroFields(t *testing.T) {
	got := Timing{SilenceTimeout: time.Second}.withDefaults()
	want := DefaultTiming()
	require.Equal(t, time.Second, got.SilenceTimeout)
	require.Equal(t, want.NoInputTimeout, got.NoInputTimeout)
	require.Equal(t, want.ProcessingDelay, got.ProcessingDelay)
	require.Equal(t, 2*time.Second, want.SilenceTimeout)
	require.Equal(t, time.Second, want.Tick)
}

func TestFallbackTranscriberEmitsAfterDelay(t *testing.T) {
	f := NewFallbackTranscriber(10 * time.Millisecond)

	partials, err := f.Start(context.Background())
	require.NoError(t, err)

	select {
	case text := <-partials:
		require.Equal(t, FallbackTranscript, text)
	case <-time.After(time.Second):
		t.Fatal("fallback transcript not emitted")
	}

	res, err := f.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, FallbackTranscript, res.Transcript)
	require.Equal(t, "fallback", res.AudioDevice)

	_, ok := <-partials
	require.False(t, ok)
}

func TestFallbackTranscriberStopBeforeEmission(t *testing.T) {
	f := NewFallbackTranscriber(time.Hour)
	_, err := f.Start(context.Background())
	require.NoError(t, err)

	_, err = f.Start(context.Background())
	require.Error(t, err)

	res, err := f.Stop(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Transcript)

	_, err = f.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotCapturing)
	require.NoError(t, f.Cancel(context.Background()))
}
