// Package indicator shows interview phases as desktop notifications and plays audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/hypr"
)

const (
	colorGreeting   = "rgb(a6e3a1)"
	colorAsking     = "rgb(cba6f7)"
	colorListening  = "rgb(89b4fa)"
	colorProcessing = "rgb(f9e2af)"
	colorComplete   = "rgb(94e2d5)"
	colorError      = "rgb(f38ba8)"

	// phaseTimeoutMS keeps a phase notification up until the next phase replaces it.
	phaseTimeoutMS = 300000
)

// Notifier is the concrete indicator used by interview sessions.
// It routes notifications via Hyprland or desktop DBus based on config backend.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	player   audio.Player

	mu                    sync.Mutex
	desktopNotificationID uint32
	soundMu               sync.Mutex
	sounds                sync.WaitGroup
}

// New creates an indicator from config. A nil player plays cues on the default Pulse sink.
func New(cfg config.IndicatorConfig, player audio.Player, logger *slog.Logger) *Notifier {
	if player == nil {
		player = &audio.PulsePlayer{}
	}
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		player:   player,
	}
}

// ShowPhase replaces the indicator with the line for phase.
// An empty text falls back to the localized phase label.
func (n *Notifier) ShowPhase(ctx context.Context, phase fsm.Phase, text string) {
	if !n.cfg.Enable {
		return
	}
	color, ok := phaseColor(phase)
	if !ok {
		return
	}
	if strings.TrimSpace(text) == "" {
		text = n.messages.phase(phase)
	}
	if text == "" {
		return
	}

	timeout := phaseTimeoutMS
	if phase == fsm.PhaseComplete {
		timeout = n.errorTimeout() * 2
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, 1, timeout, color, text)
	})
}

// ShowError displays an error-state indicator message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if !n.cfg.Enable {
		return
	}
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.errorTimeout()
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, 3, timeout, colorError, text)
	})
}

// CueListen signals that the microphone is open.
func (n *Notifier) CueListen(context.Context) { n.playCue(cueListen) }

// CueStop signals the end of an answer.
func (n *Notifier) CueStop(context.Context) { n.playCue(cueStop) }

// CueComplete signals a finished interview.
func (n *Notifier) CueComplete(context.Context) { n.playCue(cueComplete) }

// CueCancel signals a skipped question or an ended interview.
func (n *Notifier) CueCancel(context.Context) { n.playCue(cueCancel) }

// Hide dismisses the active indicator surface.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// Wait blocks until queued cues have finished playing.
func (n *Notifier) Wait() {
	n.sounds.Wait()
}

func (n *Notifier) errorTimeout() int {
	if n.cfg.ErrorTimeoutMS <= 0 {
		return 1200
	}
	return n.cfg.ErrorTimeoutMS
}

func (n *Notifier) desktopBackend() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

// notify dispatches indicator output through the configured backend.
func (n *Notifier) notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if n.desktopBackend() {
		return n.notifyDesktop(ctx, timeoutMS, text)
	}
	return hypr.Notify(ctx, icon, timeoutMS, color, text)
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktopBackend() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "rehearse-indicator"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	clip := cueClip(kind)
	n.sounds.Add(1)
	go func() {
		defer n.sounds.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := n.player.Play(ctx, clip, "cue"); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}

func phaseColor(phase fsm.Phase) (string, bool) {
	switch phase {
	case fsm.PhaseGreeting:
		return colorGreeting, true
	case fsm.PhaseAsking:
		return colorAsking, true
	case fsm.PhaseListening:
		return colorListening, true
	case fsm.PhaseProcessing:
		return colorProcessing, true
	case fsm.PhaseComplete:
		return colorComplete, true
	default:
		return "", false
	}
}
