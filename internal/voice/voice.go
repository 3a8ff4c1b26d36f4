// Package voice speaks interviewer lines through a synthesizer command and
// PulseAudio playback, or paces them with a timed stand-in.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
)

// Speaker returns once text has been spoken or ctx is done.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// CommandSpeaker synthesizes WAV audio with an external command and plays it.
type CommandSpeaker struct {
	argv     []string
	player   audio.Player
	fallback *TimedSpeaker
	logger   *slog.Logger

	mu sync.Mutex
}

// NewCommandSpeaker builds a speaker for argv. The text is written to the
// command's stdin and a WAV stream is read from its stdout. When synthesis
// or playback fails, fallback (if set) paces the line instead.
func NewCommandSpeaker(argv []string, player audio.Player, fallback *TimedSpeaker, logger *slog.Logger) *CommandSpeaker {
	if player == nil {
		player = &audio.PulsePlayer{}
	}
	return &CommandSpeaker{
		argv:     append([]string(nil), argv...),
		player:   player,
		fallback: fallback,
		logger:   logger,
	}
}

// Speak plays one utterance. Only one utterance plays at a time.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.speak(ctx, text)
	if err == nil || ctx.Err() != nil || s.fallback == nil {
		return err
	}
	s.logWarn("speech synthesis failed; pacing line instead", err)
	return s.fallback.Speak(ctx, text)
}

func (s *CommandSpeaker) speak(ctx context.Context, text string) error {
	clip, err := s.synthesize(ctx, text)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, clip, "interviewer")
}

func (s *CommandSpeaker) synthesize(ctx context.Context, text string) (audio.PCM, error) {
	if len(s.argv) == 0 {
		return audio.PCM{}, errors.New("synth command argv cannot be empty")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return audio.PCM{}, fmt.Errorf("run %s: %w: %s", s.argv[0], err, msg)
		}
		return audio.PCM{}, fmt.Errorf("run %s: %w", s.argv[0], err)
	}

	clip, err := audio.ParseWAV(stdout.Bytes())
	if err != nil {
		return audio.PCM{}, fmt.Errorf("decode %s output: %w", s.argv[0], err)
	}
	return clip, nil
}

func (s *CommandSpeaker) logWarn(message string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(message, "command", s.argv[0], "error", err.Error())
}

// New picks the configured speaker. A missing synthesizer binary degrades
// to the timed speaker with a warning.
func New(cfg config.Config, logger *slog.Logger) Speaker {
	timed := NewTimedSpeaker(cfg.Speech.WordsPerMinute)
	if cfg.Speech.Output == config.OutputTimed {
		return timed
	}

	argv := cfg.Speech.SynthCmd.Argv
	if len(argv) == 0 {
		return timed
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		if logger != nil {
			logger.Warn("speech synthesizer not found; using timed speaker", "command", argv[0])
		}
		return timed
	}
	return NewCommandSpeaker(argv, &audio.PulsePlayer{}, timed, logger)
}
