package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/session"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	frames   chan []byte
	stopOnce sync.Once
	stops    int
	raw      []byte
	mu       sync.Mutex
}

func newFakeCapture(frames ...[]byte) *fakeCapture {
	c := &fakeCapture{frames: make(chan []byte, len(frames)+1)}
	for _, f := range frames {
		c.frames <- f
	}
	return c
}

func (c *fakeCapture) Frames() <-chan []byte { return c.frames }
func (c *fakeCapture) BytesCaptured() int64  { return int64(len(c.raw)) }
func (c *fakeCapture) RawPCM() []byte        { return c.raw }

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.frames) })
	return nil
}

type fakeStream struct {
	mu        sync.Mutex
	sent      [][]byte
	sendErr   error
	updates   chan string
	final     string
	finalErr  error
	cancelled bool
	closed    bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{updates: make(chan string, 8)}
}

func (s *fakeStream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *fakeStream) Updates() <-chan string { return s.updates }

func (s *fakeStream) CloseAndCollect(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.final, s.finalErr
}

func (s *fakeStream) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	return nil
}

func newTestTranscriber(t *testing.T, cfg config.Config, stream *fakeStream, capture *fakeCapture) *Transcriber {
	t.Helper()
	tr := NewTranscriber(cfg, func(context.Context) (Stream, error) { return stream, nil }, nil)
	tr.selectDevice = func(context.Context, string, string) (audio.Selection, error) {
		return audio.Selection{Device: audio.Device{ID: "mic", Description: "Desk Mic"}, Warning: "using fallback"}, nil
	}
	tr.startCapture = func(context.Context, audio.Device, audio.CaptureOptions) (captureSource, error) {
		return capture, nil
	}
	return tr
}

func TestTranscriberStreamsFramesAndReturnsFinal(t *testing.T) {
	stream := newFakeStream()
	stream.final = "  I shipped it.  "
	capture := newFakeCapture([]byte{1, 2}, nil, []byte{3, 4})
	tr := newTestTranscriber(t, config.Default(), stream, capture)

	partials, err := tr.Start(context.Background())
	require.NoError(t, err)

	stream.updates <- "i shipped"
	select {
	case got := <-partials:
		require.Equal(t, "i shipped", got)
	case <-time.After(time.Second):
		t.Fatal("partial not forwarded")
	}

	res, err := tr.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, "I shipped it.", res.Transcript)
	require.Equal(t, "Desk Mic (mic)", res.AudioDevice)

	stream.mu.Lock()
	require.Equal(t, [][]byte{{1, 2}, {3, 4}}, stream.sent)
	require.True(t, stream.closed)
	stream.mu.Unlock()

	_, ok := <-partials
	require.False(t, ok)
}

func TestTranscriberIsReusableAcrossAnswers(t *testing.T) {
	first, second := newFakeStream(), newFakeStream()
	first.final, second.final = "one", "two"
	streams := []*fakeStream{first, second}

	tr := NewTranscriber(config.Default(), func(context.Context) (Stream, error) {
		s := streams[0]
		streams = streams[1:]
		return s, nil
	}, nil)
	tr.selectDevice = func(context.Context, string, string) (audio.Selection, error) { return audio.Selection{}, nil }
	tr.startCapture = func(context.Context, audio.Device, audio.CaptureOptions) (captureSource, error) {
		return newFakeCapture(), nil
	}

	for _, want := range []string{"one", "two"} {
		_, err := tr.Start(context.Background())
		require.NoError(t, err)
		res, err := tr.Stop(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, res.Transcript)
	}
}

func TestTranscriberStartTwiceFails(t *testing.T) {
	tr := newTestTranscriber(t, config.Default(), newFakeStream(), newFakeCapture())
	_, err := tr.Start(context.Background())
	require.NoError(t, err)

	_, err = tr.Start(context.Background())
	require.ErrorIs(t, err, session.ErrSessionActive)
	require.NoError(t, tr.Cancel(context.Background()))
}

func TestTranscriberStartFailures(t *testing.T) {
	tr := NewTranscriber(config.Default(), nil, nil)
	_, err := tr.Start(context.Background())
	require.ErrorIs(t, err, ErrPipelineUnavailable)

	stream := newFakeStream()
	tr = newTestTranscriber(t, config.Default(), stream, nil)
	tr.startCapture = func(context.Context, audio.Device, audio.CaptureOptions) (captureSource, error) {
		return nil, errors.New("no source")
	}
	_, err = tr.Start(context.Background())
	require.ErrorContains(t, err, "no source")
	require.True(t, stream.cancelled)

	tr = newTestTranscriber(t, config.Default(), stream, newFakeCapture())
	tr.dial = func(context.Context) (Stream, error) { return nil, errors.New("recognizer down") }
	_, err = tr.Start(context.Background())
	require.ErrorContains(t, err, "recognizer down")

	tr.selectDevice = func(context.Context, string, string) (audio.Selection, error) {
		return audio.Selection{}, errors.New("muted")
	}
	_, err = tr.Start(context.Background())
	require.ErrorContains(t, err, "muted")
}

func TestTranscriberStopReportsSendFailure(t *testing.T) {
	stream := newFakeStream()
	stream.sendErr = errors.New("broken pipe")
	capture := newFakeCapture([]byte{1}, []byte{2})
	tr := newTestTranscriber(t, config.Default(), stream, capture)

	_, err := tr.Start(context.Background())
	require.NoError(t, err)

	_, err = tr.Stop(context.Background())
	require.ErrorContains(t, err, "broken pipe")
	require.True(t, stream.cancelled)
	require.False(t, stream.closed)
}

func TestTranscriberStopKeepsTextOnCollectError(t *testing.T) {
	stream := newFakeStream()
	stream.final = "partial answer"
	stream.finalErr = errors.New("deadline")
	tr := newTestTranscriber(t, config.Default(), stream, newFakeCapture())

	_, err := tr.Start(context.Background())
	require.NoError(t, err)

	res, err := tr.Stop(context.Background())
	require.ErrorContains(t, err, "collect final transcript")
	require.Equal(t, "partial answer", res.Transcript)
}

func TestTranscriberStopAndCancelWithoutStart(t *testing.T) {
	tr := NewTranscriber(config.Default(), nil, nil)
	_, err := tr.Stop(context.Background())
	require.ErrorIs(t, err, ErrPipelineUnavailable)
	require.NoError(t, tr.Cancel(context.Background()))
}

func TestTranscriberCancelStopsEverything(t *testing.T) {
	stream := newFakeStream()
	capture := newFakeCapture()
	tr := newTestTranscriber(t, config.Default(), stream, capture)

	partials, err := tr.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, tr.Cancel(context.Background()))

	require.True(t, stream.cancelled)
	require.Equal(t, 1, capture.stops)
	_, ok := <-partials
	require.False(t, ok)
}

func TestPartialsCloseWhenRecognizerEnds(t *testing.T) {
	stream := newFakeStream()
	tr := newTestTranscriber(t, config.Default(), stream, newFakeCapture())

	partials, err := tr.Start(context.Background())
	require.NoError(t, err)
	close(stream.updates)

	select {
	case _, ok := <-partials:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("partials not closed")
	}
	require.NoError(t, tr.Cancel(context.Background()))
}

func TestWriteDebugAudioCreatesWAVWhenEnabled(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	cfg := config.Default()
	cfg.Debug.EnableAudioDump = true
	stream := newFakeStream()
	capture := newFakeCapture([]byte{1, 0, 2, 0})
	capture.raw = []byte{1, 0, 2, 0}
	tr := newTestTranscriber(t, cfg, stream, capture)

	_, err := tr.Start(context.Background())
	require.NoError(t, err)
	_, err = tr.Stop(context.Background())
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(state, "rehearse", "debug", "answer-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	clip, err := audio.ParseWAV(data)
	require.NoError(t, err)
	require.Equal(t, []int16{1, 2}, clip.Samples)
	require.Equal(t, audio.CaptureSampleRate, clip.SampleRate)
}

func TestWriteDebugAudioSkippedWhenDisabled(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	tr := NewTranscriber(config.Default(), nil, nil)
	tr.writeDebugAudio([]byte{1, 2})

	_, err := os.Stat(filepath.Join(state, "rehearse", "debug"))
	require.True(t, os.IsNotExist(err))
}

func TestDescribeDevice(t *testing.T) {
	require.Equal(t, "Elgato (alsa_input.wave3)", describeDevice(audio.Device{Description: "Elgato", ID: "alsa_input.wave3"}))
	require.Equal(t, "Elgato", describeDevice(audio.Device{Description: "Elgato"}))
	require.Equal(t, "alsa_input.wave3", describeDevice(audio.Device{ID: "alsa_input.wave3"}))
}
