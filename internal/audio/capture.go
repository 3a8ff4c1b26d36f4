package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// CaptureSampleRate is the recognizer input rate.
	CaptureSampleRate = 16000
	// FrameBytes is 20ms of 16kHz mono s16le.
	FrameBytes = 640
)

// Capture streams fixed-size PCM frames from one selected Pulse source.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	frames chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	raw     []byte
	keepRaw bool
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
	peak     atomic.Uint32
}

// CaptureOptions tunes one capture.
type CaptureOptions struct {
	// KeepRaw retains all PCM for debug dumps.
	KeepRaw bool
}

// StartCapture creates and starts a 16kHz mono s16 record stream. The
// capture stops when ctx is cancelled.
func StartCapture(ctx context.Context, selected Device, opts CaptureOptions) (*Capture, error) {
	client, err := newClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	c := newCapture(selected, opts)
	c.client = client

	writer := pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(CaptureSampleRate),
		pulse.RecordBufferFragmentSize(FrameBytes),
		pulse.RecordMediaName("rehearse answer"),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.stopCh:
		}
	}()

	return c, nil
}

func newCapture(device Device, opts CaptureOptions) *Capture {
	return &Capture{
		device:  device,
		frames:  make(chan []byte, 128),
		stopCh:  make(chan struct{}),
		keepRaw: opts.KeepRaw,
	}
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Frames returns the PCM stream as FrameBytes-sized slices.
func (c *Capture) Frames() <-chan []byte {
	return c.frames
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Peak returns the loudest absolute sample seen so far, in [0, 1].
func (c *Capture) Peak() float64 {
	return float64(c.peak.Load()) / math.MaxInt16
}

// RawPCM returns a copy of all captured PCM when KeepRaw was set.
func (c *Capture) RawPCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.raw...)
}

// Stop halts the stream, flushes residual PCM, and closes Frames exactly once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	tail := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(tail) > 0 {
		select {
		case c.frames <- tail:
		default:
		}
	}
	close(c.frames)
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

// onPCM receives raw Pulse buffers and emits FrameBytes slices.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same lock that guards stopped so Stop's Wait sees it.
	c.inflight.Add(1)
	defer c.inflight.Done()

	if c.keepRaw {
		c.raw = append(c.raw, buffer...)
	}
	c.pending = append(c.pending, buffer...)
	var frames [][]byte
	for len(c.pending) >= FrameBytes {
		frames = append(frames, append([]byte(nil), c.pending[:FrameBytes]...))
		c.pending = c.pending[FrameBytes:]
	}
	c.mu.Unlock()

	c.bytes.Add(int64(len(buffer)))
	c.trackPeak(buffer)

	for _, frame := range frames {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.frames <- frame:
		}
	}
	return len(buffer), nil
}

func (c *Capture) trackPeak(buffer []byte) {
	var peak uint32
	for i := 0; i+1 < len(buffer); i += 2 {
		s := int32(int16(uint16(buffer[i]) | uint16(buffer[i+1])<<8))
		if s < 0 {
			s = -s
		}
		if uint32(s) > peak {
			peak = uint32(s)
		}
	}
	if peak > math.MaxInt16 {
		peak = math.MaxInt16
	}
	for {
		cur := c.peak.Load()
		if peak <= cur || c.peak.CompareAndSwap(cur, peak) {
			return
		}
	}
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
