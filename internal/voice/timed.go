package voice

import (
	"context"
	"strings"
	"time"
)

const (
	minUtterance = 500 * time.Millisecond
	maxUtterance = 20 * time.Second
)

// TimedSpeaker waits roughly as long as reading text aloud would take.
type TimedSpeaker struct {
	WordsPerMinute int
}

// NewTimedSpeaker returns a speaker paced at wpm, defaulting to 170.
func NewTimedSpeaker(wpm int) *TimedSpeaker {
	if wpm <= 0 {
		wpm = 170
	}
	return &TimedSpeaker{WordsPerMinute: wpm}
}

// Duration estimates how long text takes to say, clamped to a sane range.
func (s *TimedSpeaker) Duration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	wpm := s.WordsPerMinute
	if wpm <= 0 {
		wpm = 170
	}
	d := time.Duration(words) * time.Minute / time.Duration(wpm)
	return min(max(d, minUtterance), maxUtterance)
}

// Speak blocks for Duration(text) or until ctx is done.
func (s *TimedSpeaker) Speak(ctx context.Context, text string) error {
	d := s.Duration(text)
	if d == 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
