package audio

import (
	"math"
	"time"
)

// Tone is one sine segment of a cue.
type Tone struct {
	FrequencyHz float64
	Duration    time.Duration
	Volume      float64
}

// Cue renders tones separated by a short gap as mono PCM at rate.
func Cue(rate int, gap time.Duration, tones ...Tone) PCM {
	clip := PCM{SampleRate: rate, Channels: 1}
	gapSamples := samplesFor(rate, gap)
	for i, tone := range tones {
		clip.Samples = append(clip.Samples, renderTone(rate, tone)...)
		if i < len(tones)-1 && gapSamples > 0 {
			clip.Samples = append(clip.Samples, make([]int16, gapSamples)...)
		}
	}
	return clip
}

// Silence renders d of silence at rate.
func Silence(rate int, d time.Duration) PCM {
	return PCM{SampleRate: rate, Channels: 1, Samples: make([]int16, samplesFor(rate, d))}
}

// renderTone applies a short linear attack/release to avoid clicks.
func renderTone(rate int, tone Tone) []int16 {
	n := samplesFor(rate, tone.Duration)
	if n <= 0 || tone.FrequencyHz <= 0 || tone.Volume <= 0 {
		return nil
	}

	ramp := min(n/10, rate/200)
	ramp = max(ramp, 1)

	out := make([]int16, n)
	for i := range n {
		env := 1.0
		if i < ramp {
			env = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			env = min(env, float64(tail)/float64(ramp))
		}
		s := math.Sin(2 * math.Pi * tone.FrequencyHz * float64(i) / float64(rate))
		out[i] = int16(math.Round(s * tone.Volume * env * math.MaxInt16))
	}
	return out
}

func samplesFor(rate int, d time.Duration) int {
	if d <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(rate)))
}
