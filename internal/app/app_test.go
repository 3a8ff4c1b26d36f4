package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/rbright/rehearse/internal/session"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "rehearse")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerStatusIdleWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerSkipReturnsNoActiveInterview(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "skip"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no active rehearse interview")
}

func TestRunnerForwardsCommandsToActiveInterview(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	commands := make(chan string, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "rehearse.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, Phase: "listening"}
		case ipc.CommandSkip, ipc.CommandEnd:
			return ipc.Response{OK: true, Phase: "listening", Message: req.Command + " requested"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	runner := Runner{}
	for _, cmd := range []string{"status", "skip", "end"} {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner.Stdout = stdout
		runner.Stderr = stderr

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 0, exitCode, cmd)
		require.Empty(t, stderr.String(), cmd)
		if cmd != "status" {
			require.Equal(t, cmd+" requested\n", stdout.String())
		}
	}

	got := []string{<-commands, <-commands, <-commands}
	require.ElementsMatch(t, []string{"status", "skip", "end"}, got)
}

func TestRunnerInterviewRefusesSecondSession(t *testing.T) {
	paths := setupRunnerEnv(t, fastInterviewConfig(t))

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "rehearse.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		require.Equal(t, ipc.CommandStatus, req.Command)
		return ipc.Response{OK: true, Phase: "asking", Session: &ipc.SessionStatus{ID: "abc", Question: 2, Total: 5, Responses: 1, Elapsed: 75}}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "interview"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "already running")
	require.Equal(t, "asking | question 2/5 | responses 1 | elapsed 1:15 | session abc\n", stdout.String())
}

func TestRunnerInterviewRunsToCompletionAndSavesFeedback(t *testing.T) {
	paths := setupRunnerEnv(t, fastInterviewConfig(t))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "interview", "technical"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "starting 2-question interview")
	require.Contains(t, stdout.String(), "interview complete: 2 of 2 questions answered")
	require.Contains(t, stdout.String(), "overall score")

	match := regexp.MustCompile(`\(session ([0-9a-f-]{36})\)`).FindStringSubmatch(stdout.String())
	require.Len(t, match, 2)
	id := match[1]

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "rehearse.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)

	stdout.Reset()
	stderr.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "sessions"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "* "+id)
	require.Contains(t, stdout.String(), "2/2 answered")

	stdout.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "feedback", id})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "Session "+id)
	require.Contains(t, stdout.String(), "Answered 2 of 2")
}

func TestRunnerInterviewInterruptedSavesAndExitsCleanly(t *testing.T) {
	// A long silence window holds the first answer open until the interrupt.
	body := strings.Replace(fastInterviewConfig(t), "silence_ms: 40", "silence_ms: 8000", 1)
	body = strings.Replace(body, "no_input_ms: 2000", "no_input_ms: 10000", 1)
	paths := setupRunnerEnv(t, body)
	socketPath := filepath.Join(paths.runtimeDir, "rehearse.sock")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Logger: slog.New(slog.DiscardHandler)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() {
		done <- runner.Execute(ctx, []string{"--config", paths.configPath, "interview"})
	}()

	require.Eventually(t, func() bool {
		_, err := ipc.Send(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus}, 100*time.Millisecond)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	var exitCode int
	select {
	case exitCode = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("interview did not stop after interrupt")
	}
	require.Equal(t, 0, exitCode, stderr.String())
	require.NotContains(t, stderr.String(), "context canceled")
	require.Contains(t, stdout.String(), "interview cancelled:")

	match := regexp.MustCompile(`\(session ([0-9a-f-]{36})\)`).FindStringSubmatch(stdout.String())
	require.Len(t, match, 2)

	stdout.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "sessions"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "* "+match[1])
}

func TestCancelledAndSaved(t *testing.T) {
	require.True(t, cancelledAndSaved(session.Result{Cancelled: true, Saved: true, Err: context.Canceled}))
	require.False(t, cancelledAndSaved(session.Result{Cancelled: true, Err: errors.Join(context.Canceled, errors.New("disk full"))}))
	require.False(t, cancelledAndSaved(session.Result{Saved: true, Err: errors.New("boom")}))
}

func TestRunnerFeedbackRejectsBadAndUnknownIDs(t *testing.T) {
	paths := setupRunnerEnv(t, fastInterviewConfig(t))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "feedback", "../etc/passwd"})
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "invalid session id")

	stderr.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "feedback", "0190f0c8-9c1c-7d0e-8a3b-2f4c5d6e7f80"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no saved interview")
}

func TestRunnerQuestionsCommand(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "questions", "technical"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "1. [situational, 120s] How would you explain")
	require.Contains(t, stdout.String(), "2. [technical, 180s] Walk me through")

	stderr.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "questions", "trivia"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "unknown interview type")
}

func TestRunnerSessionsEmpty(t *testing.T) {
	paths := setupRunnerEnv(t, fastInterviewConfig(t))

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "sessions"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "no saved interviews\n", stdout.String())
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "rehearse.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	serverCtx, cancelServer := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- ipc.Serve(serverCtx, listener, ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
			switch req.Command {
			case ipc.CommandStatus:
				return ipc.Response{OK: true, Phase: "listening"}
			default:
				return ipc.Response{OK: false, Error: "no active interview"}
			}
		}))
	}()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "listening", resp.Phase)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.CommandSkip)
	require.True(t, handled)
	require.EqualError(t, err, "no active interview")

	cancelServer()
	require.NoError(t, <-serverDone)
}

func TestTryForwardLeavesStaleSocketFile(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "rehearse.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "rehearse.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	require.NoError(t, listener.Close())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t, fastInterviewConfig(t))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 0, exitCode, stdout.String())
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "[OK] store: file backend")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerRejectsInvalidConfig(t *testing.T) {
	paths := setupRunnerEnv(t, "speech:\n  input: telepathy\n")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "questions"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "speech.input must be one of")
}

func TestFormatStatus(t *testing.T) {
	require.Equal(t, "idle", formatStatus(ipc.Response{OK: true}))
	require.Equal(t, "greeting", formatStatus(ipc.Response{OK: true, Phase: "greeting"}))
	require.Equal(t,
		`listening | question 1/3 | responses 0 | elapsed 0:09 | session id | heard "so I led"`,
		formatStatus(ipc.Response{Phase: "listening", Session: &ipc.SessionStatus{ID: "id", Question: 1, Total: 3, Elapsed: 9, Transcript: " so I led "}}),
	)
}

func TestTimingFromConfig(t *testing.T) {
	got := timingFromConfig(config.TimingConfig{
		GreetingLeadMS: 10, SilenceMS: 20, NoInputMS: 30, ProcessingMS: 40, TransitionPauseMS: 50, ClosingMS: 60,
	})
	require.Equal(t, 10*time.Millisecond, got.GreetingLead)
	require.Equal(t, 20*time.Millisecond, got.SilenceTimeout)
	require.Equal(t, 30*time.Millisecond, got.NoInputTimeout)
	require.Equal(t, 40*time.Millisecond, got.ProcessingDelay)
	require.Equal(t, 50*time.Millisecond, got.TransitionPause)
	require.Equal(t, 60*time.Millisecond, got.ClosingTimeout)
	require.Equal(t, session.DefaultTiming().Tick, got.Tick)
}

func TestNewTranscriberFallsBackWithoutRecognizer(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.Input = config.InputFallback
	tr := newTranscriber(cfg, session.DefaultTiming(), slog.New(slog.DiscardHandler))
	_, ok := tr.(*session.FallbackTranscriber)
	require.True(t, ok)
}

func TestLogSessionResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logSessionResult(logger, session.Result{
		SessionID:  "abc",
		Phase:      fsm.PhaseComplete,
		StartedAt:  started,
		FinishedAt: finished,
		Record: interview.Record{
			Questions: interview.DefaultQuestions(),
			Responses: []interview.Response{{QuestionID: 1, Transcript: "hello"}},
		},
	})

	require.Contains(t, logBuf.String(), "interview finished")
	require.Contains(t, logBuf.String(), `"responses":1`)
	require.Contains(t, logBuf.String(), `"questions":5`)

	logBuf.Reset()
	logSessionResult(logger, session.Result{
		Phase:      fsm.PhaseSetup,
		StartedAt:  started,
		FinishedAt: finished,
		Err:        errors.New("boom"),
	})
	require.Contains(t, logBuf.String(), "interview failed")
	require.Contains(t, logBuf.String(), "boom")
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T, configBody string) runnerPaths {
	t.Helper()

	t.Setenv("XDG_STATE_HOME", t.TempDir())
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configBody+"\n"), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

// fastInterviewConfig keeps an interview to a couple of seconds with no
// audio devices, notifications, or synthesizer involved.
func fastInterviewConfig(t *testing.T) string {
	t.Helper()
	return `
interview:
  timing:
    greeting_lead_ms: 5
    silence_ms: 40
    no_input_ms: 2000
    processing_ms: 10
    transition_pause_ms: 5
    closing_ms: 200
speech:
  input: fallback
  output: timed
  words_per_minute: 60000
store:
  backend: file
  dir: ` + filepath.Join(t.TempDir(), "sessions") + `
indicator:
  enable: false
  sound_enable: false
`
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
