// Package pipeline captures microphone audio and streams it to a speech
// recognizer, publishing cumulative transcripts while the candidate speaks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/session"
)

// ErrPipelineUnavailable is returned when Stop or Cancel find no capture.
var ErrPipelineUnavailable = errors.New("speech pipeline unavailable")

// Stream is one open recognition session.
type Stream interface {
	SendAudio(chunk []byte) error
	// Updates delivers cumulative transcripts and closes when the stream ends.
	Updates() <-chan string
	CloseAndCollect(ctx context.Context) (string, error)
	Cancel() error
}

// Dialer opens a recognition stream for one answer.
type Dialer func(ctx context.Context) (Stream, error)

// captureSource is the slice of *audio.Capture the pipeline drives.
type captureSource interface {
	Frames() <-chan []byte
	Stop() error
	BytesCaptured() int64
	RawPCM() []byte
}

type (
	selectFunc  func(ctx context.Context, input string, fallback string) (audio.Selection, error)
	captureFunc func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (captureSource, error)
)

// Transcriber owns one capture -> recognizer pipeline per answer. It is
// reusable: each Start..Stop pair handles one answer.
type Transcriber struct {
	cfg    config.Config
	logger *slog.Logger
	dial   Dialer

	selectDevice selectFunc
	startCapture captureFunc

	mu        sync.Mutex
	started   bool
	selection audio.Selection
	capture   captureSource
	stream    Stream
	sendErrCh chan error
	quit      chan struct{}
	forwarded chan struct{}
}

// NewTranscriber constructs a pipeline over dial.
func NewTranscriber(cfg config.Config, dial Dialer, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		cfg:          cfg,
		logger:       logger,
		dial:         dial,
		selectDevice: audio.SelectDevice,
		startCapture: func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (captureSource, error) {
			return audio.StartCapture(ctx, device, opts)
		},
	}
}

// Start selects an input device, opens the recognizer stream, and starts
// capture. The returned channel carries cumulative partial transcripts and
// closes when the recognizer stream ends or the pipeline stops.
func (t *Transcriber) Start(ctx context.Context) (<-chan string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil, session.ErrSessionActive
	}
	if t.dial == nil {
		return nil, ErrPipelineUnavailable
	}

	selection, err := t.selectDevice(ctx, t.cfg.Audio.Input, t.cfg.Audio.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		t.logWarn(selection.Warning)
	}

	stream, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}

	capture, err := t.startCapture(ctx, selection.Device, audio.CaptureOptions{KeepRaw: t.cfg.Debug.EnableAudioDump})
	if err != nil {
		_ = stream.Cancel()
		return nil, err
	}

	partials := make(chan string)
	t.selection = selection
	t.stream = stream
	t.capture = capture
	t.sendErrCh = make(chan error, 1)
	t.quit = make(chan struct{})
	t.forwarded = make(chan struct{})
	t.started = true

	go t.sendLoop(capture, stream, t.sendErrCh)
	go forward(stream.Updates(), partials, t.quit, t.forwarded)
	return partials, nil
}

// Stop ends capture, flushes the recognizer, and returns the transcript.
func (t *Transcriber) Stop(ctx context.Context) (session.StopResult, error) {
	capture, stream, sendErrCh, selection, ok := t.take()
	if !ok {
		return session.StopResult{}, ErrPipelineUnavailable
	}

	_ = capture.Stop()
	result := session.StopResult{
		AudioDevice:   describeDevice(selection.Device),
		BytesCaptured: capture.BytesCaptured(),
	}
	defer t.writeDebugAudio(capture.RawPCM())

	if sendErr := <-sendErrCh; sendErr != nil {
		_ = stream.Cancel()
		return result, fmt.Errorf("send audio stream: %w", sendErr)
	}

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	text, err := stream.CloseAndCollect(closeCtx)
	result.Transcript = strings.TrimSpace(text)
	if err != nil {
		return result, fmt.Errorf("collect final transcript: %w", err)
	}
	return result, nil
}

// Cancel stops capture and stream immediately, discarding the transcript.
func (t *Transcriber) Cancel(_ context.Context) error {
	capture, stream, _, _, ok := t.take()
	if !ok {
		return nil
	}
	_ = capture.Stop()
	_ = stream.Cancel()
	t.writeDebugAudio(capture.RawPCM())
	return nil
}

// take detaches the active pipeline and stops partial forwarding.
func (t *Transcriber) take() (captureSource, Stream, chan error, audio.Selection, bool) {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil, nil, nil, audio.Selection{}, false
	}
	capture, stream, sendErrCh, selection := t.capture, t.stream, t.sendErrCh, t.selection
	quit, forwarded := t.quit, t.forwarded
	t.started = false
	t.capture, t.stream, t.sendErrCh, t.quit, t.forwarded = nil, nil, nil, nil, nil
	t.mu.Unlock()

	close(quit)
	<-forwarded
	return capture, stream, sendErrCh, selection, true
}

// sendLoop forwards capture frames to the recognizer and reports the first
// send failure.
func (t *Transcriber) sendLoop(capture captureSource, stream Stream, errCh chan<- error) {
	for frame := range capture.Frames() {
		if len(frame) == 0 {
			continue
		}
		if err := stream.SendAudio(frame); err != nil {
			_ = capture.Stop()
			for range capture.Frames() {
			}
			errCh <- err
			return
		}
	}
	errCh <- nil
}

// forward relays recognizer updates until the stream ends or quit closes.
func forward(updates <-chan string, partials chan<- string, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(partials)
	for {
		select {
		case <-quit:
			return
		case text, ok := <-updates:
			if !ok {
				return
			}
			select {
			case partials <- text:
			case <-quit:
				return
			}
		}
	}
}

// describeDevice formats device metadata for logs and results.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

func (t *Transcriber) logWarn(message string) {
	if t.logger == nil {
		return
	}
	t.logger.Warn(message)
}
