package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/deepgram"
	"github.com/rbright/rehearse/internal/feedback"
	"github.com/rbright/rehearse/internal/handoff"
	"github.com/rbright/rehearse/internal/indicator"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/rbright/rehearse/internal/pipeline"
	"github.com/rbright/rehearse/internal/recognizer"
	"github.com/rbright/rehearse/internal/session"
	"github.com/rbright/rehearse/internal/store"
	"github.com/rbright/rehearse/internal/voice"
)

func (r Runner) commandInterview(ctx context.Context, cfg config.Config, rawType string, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus); handled {
		return r.reportRunning(resp, err)
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, ipc.CommandStatus)
			return r.reportRunning(resp, forwardErr)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	if strings.TrimSpace(rawType) == "" {
		rawType = cfg.Interview.Type
	}
	questions, err := interview.Resolve(cfg.Interview.QuestionsFile, rawType)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open store: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	reports := feedback.NewService(st, nil, logger)
	timing := timingFromConfig(cfg.Interview.Timing)
	controller := session.NewController(logger, questions, session.Options{
		Speaker:     voice.New(cfg, logger),
		Transcriber: newTranscriber(cfg, timing, logger),
		Store:       st,
		Handoff:     handoff.NewFeedback(reports, handoff.NewCommand(cfg.HandoffCmd.Argv, logger), logger),
		Indicator:   indicator.New(cfg.Indicator, nil, logger),
		Timing:      timing,
		Capitalize:  cfg.Transcript.CapitalizeSentences,
	})

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	fmt.Fprintf(r.Stdout, "starting %d-question interview (skip and end from another terminal)\n", len(questions))
	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Err != nil && !cancelledAndSaved(result) {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	r.printSummary(result)

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if report, err := reports.Get(reportCtx, result.SessionID); err == nil {
		fmt.Fprintf(r.Stdout, "overall score %d (STAR %d, clarity %d, pacing %d)\n",
			report.OverallScore, report.StarScore, report.ClarityScore, report.PacingScore)
		fmt.Fprintf(r.Stdout, "full report: %s feedback %s\n", binaryName, result.SessionID)
	} else {
		logger.Warn("feedback unavailable", "session_id", result.SessionID, "error", err.Error())
	}
	return 0
}

func (r Runner) reportRunning(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stderr, "error: an interview is already running\n")
	fmt.Fprintln(r.Stdout, formatStatus(resp))
	return 1
}

// cancelledAndSaved reports an interrupt whose partial record was persisted.
func cancelledAndSaved(result session.Result) bool {
	return result.Cancelled && result.Saved && errors.Is(result.Err, context.Canceled)
}

func (r Runner) printSummary(result session.Result) {
	record := result.Record
	outcome := "complete"
	switch {
	case result.Cancelled:
		outcome = "cancelled"
	case result.Ended:
		outcome = "ended early"
	}
	fmt.Fprintf(r.Stdout, "interview %s: %d of %d questions answered in %s (session %s)\n",
		outcome, len(record.Responses), len(record.Questions), formatElapsed(record.TotalDuration), result.SessionID)
}

// newTranscriber builds the answer pipeline for the configured input backend.
func newTranscriber(cfg config.Config, timing session.Timing, logger *slog.Logger) session.Transcriber {
	phrases, warnings, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		logger.Warn("speech phrases disabled", "error", err.Error())
		phrases = nil
	}
	for _, w := range warnings {
		logger.Warn("speech phrase warning", "message", w.Message)
	}
	logger.Debug("speech context plan", "phrase_count", len(phrases))

	switch cfg.Speech.Input {
	case config.InputRecognizer:
		return pipeline.NewTranscriber(cfg, recognizerDialer(cfg.Recognizer, phrases), logger)
	case config.InputDeepgram:
		return pipeline.NewTranscriber(cfg, deepgramDialer(cfg.Deepgram, phrases), logger)
	default:
		return session.NewFallbackTranscriber(timing.SilenceTimeout)
	}
}

func recognizerDialer(cfg config.RecognizerConfig, phrases []config.SpeechPhrase) pipeline.Dialer {
	streamCfg := recognizer.StreamConfig{
		Endpoint:             cfg.GRPC,
		LanguageCode:         cfg.LanguageCode,
		Model:                cfg.Model,
		AutomaticPunctuation: cfg.AutomaticPunctuation,
		DialTimeout:          time.Duration(cfg.DialTimeoutMS) * time.Millisecond,
	}
	for _, p := range phrases {
		streamCfg.SpeechPhrases = append(streamCfg.SpeechPhrases, recognizer.SpeechPhrase{Phrase: p.Phrase, Boost: p.Boost})
	}
	return func(ctx context.Context) (pipeline.Stream, error) {
		stream, err := recognizer.Dial(ctx, streamCfg)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
}

func deepgramDialer(cfg config.DeepgramConfig, phrases []config.SpeechPhrase) pipeline.Dialer {
	streamCfg := deepgram.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Language:    cfg.Language,
		SmartFormat: cfg.SmartFormat,
		SampleRate:  audio.CaptureSampleRate,
	}
	for _, p := range phrases {
		keyword := p.Phrase
		if p.Boost > 0 {
			keyword = fmt.Sprintf("%s:%g", p.Phrase, p.Boost)
		}
		streamCfg.Keywords = append(streamCfg.Keywords, keyword)
	}
	return func(ctx context.Context) (pipeline.Stream, error) {
		stream, err := deepgram.Dial(ctx, streamCfg)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
}

// timingFromConfig maps configured milliseconds onto session pacing.
// Fields not exposed in config keep their defaults.
func timingFromConfig(cfg config.TimingConfig) session.Timing {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	t := session.DefaultTiming()
	t.GreetingLead = ms(cfg.GreetingLeadMS)
	t.SilenceTimeout = ms(cfg.SilenceMS)
	t.NoInputTimeout = ms(cfg.NoInputMS)
	t.ProcessingDelay = ms(cfg.ProcessingMS)
	t.TransitionPause = ms(cfg.TransitionPauseMS)
	t.ClosingTimeout = ms(cfg.ClosingMS)
	return t
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session_id", result.SessionID,
		"phase", result.Phase,
		"ended", result.Ended,
		"cancelled", result.Cancelled,
		"saved", result.Saved,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"questions", len(result.Record.Questions),
		"responses", len(result.Record.Responses),
	}

	if cancelledAndSaved(result) {
		logger.Info("interview cancelled", fields...)
		return
	}
	if result.Err != nil {
		logger.Error("interview failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("interview finished", fields...)
}
