package indicator

import (
	"time"

	"github.com/rbright/rehearse/internal/audio"
)

type cueKind int

const (
	cueListen cueKind = iota
	cueStop
	cueComplete
	cueCancel
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
)

func cueClip(kind cueKind) audio.PCM {
	switch kind {
	case cueListen:
		return audio.Cue(cueSampleRate, cueGap,
			audio.Tone{FrequencyHz: 660, Duration: 70 * time.Millisecond, Volume: 0.18},
			audio.Tone{FrequencyHz: 880, Duration: 90 * time.Millisecond, Volume: 0.18},
		)
	case cueStop:
		return audio.Cue(cueSampleRate, cueGap,
			audio.Tone{FrequencyHz: 880, Duration: 70 * time.Millisecond, Volume: 0.16},
			audio.Tone{FrequencyHz: 660, Duration: 90 * time.Millisecond, Volume: 0.16},
		)
	case cueComplete:
		return audio.Cue(cueSampleRate, cueGap,
			audio.Tone{FrequencyHz: 523.25, Duration: 80 * time.Millisecond, Volume: 0.18},
			audio.Tone{FrequencyHz: 659.25, Duration: 80 * time.Millisecond, Volume: 0.18},
			audio.Tone{FrequencyHz: 783.99, Duration: 140 * time.Millisecond, Volume: 0.18},
		)
	case cueCancel:
		return audio.Cue(cueSampleRate, cueGap,
			audio.Tone{FrequencyHz: 440, Duration: 90 * time.Millisecond, Volume: 0.15},
			audio.Tone{FrequencyHz: 330, Duration: 120 * time.Millisecond, Volume: 0.15},
		)
	default:
		return audio.PCM{SampleRate: cueSampleRate, Channels: 1}
	}
}
