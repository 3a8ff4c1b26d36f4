package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

// PCM is interleaved signed 16-bit audio.
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Seconds is the playback length of the clip.
func (p PCM) Seconds() float64 {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate*p.Channels)
}

// Player plays PCM clips one at a time.
type Player interface {
	Play(ctx context.Context, clip PCM, media string) error
}

// PulsePlayer plays clips on the default Pulse sink.
type PulsePlayer struct {
	mu sync.Mutex
}

// Play blocks until clip has drained or ctx is cancelled. A cancelled
// context stops feeding samples and returns ctx.Err() once the stream drains.
func (p *PulsePlayer) Play(ctx context.Context, clip PCM, media string) error {
	if len(clip.Samples) == 0 {
		return nil
	}
	if clip.SampleRate <= 0 {
		return errors.New("clip sample rate must be > 0")
	}
	var layout pulse.PlaybackOption
	switch clip.Channels {
	case 1:
		layout = pulse.PlaybackMono
	case 2:
		layout = pulse.PlaybackStereo
	default:
		return fmt.Errorf("unsupported channel count %d", clip.Channels)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	client, err := newClient("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		pulse.Int16Reader(clipReader(ctx, clip.Samples)),
		layout,
		pulse.PlaybackSampleRate(clip.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(media),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s: %w", media, err)
	}
	return ctx.Err()
}

// clipReader feeds samples until exhausted or ctx is done.
func clipReader(ctx context.Context, samples []int16) func([]int16) (int, error) {
	cursor := 0
	return func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	}
}
