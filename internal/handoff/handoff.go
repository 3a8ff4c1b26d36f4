// Package handoff passes a completed session id to whatever shows feedback.
package handoff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/feedback"
)

// Placeholder is replaced by the session id in command arguments.
const Placeholder = "{id}"

// Command runs a configured command for each completed session.
type Command struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommand returns a command hand-off. Empty argv makes Handoff a no-op.
func NewCommand(argv []string, logger *slog.Logger) *Command {
	return &Command{argv: append([]string(nil), argv...), timeout: 5 * time.Second, logger: logger}
}

// Handoff runs the command with Placeholder expanded and REHEARSE_SESSION_ID set.
func (c *Command) Handoff(ctx context.Context, id string) error {
	if len(c.argv) == 0 {
		return nil
	}

	argv := expand(c.argv, id)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "REHEARSE_SESSION_ID="+id)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("run handoff %s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("run handoff %s: %w", argv[0], err)
	}
	if c.logger != nil {
		c.logger.Info("handoff dispatched", "session_id", id, "command", argv[0])
	}
	return nil
}

func expand(argv []string, id string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = strings.ReplaceAll(arg, Placeholder, id)
	}
	return out
}

// Generator produces a feedback report for a session.
type Generator interface {
	ForSession(ctx context.Context, id string) (feedback.Report, error)
}

// Next is the hand-off that runs after feedback is generated.
type Next interface {
	Handoff(ctx context.Context, id string) error
}

// Feedback generates the session's report and then calls next.
type Feedback struct {
	generator Generator
	next      Next
	logger    *slog.Logger
}

// NewFeedback chains report generation in front of next (which may be nil).
func NewFeedback(generator Generator, next Next, logger *slog.Logger) *Feedback {
	return &Feedback{generator: generator, next: next, logger: logger}
}

// Handoff implements the session hand-off. A generation failure does not
// stop next from running.
func (f *Feedback) Handoff(ctx context.Context, id string) error {
	var genErr error
	if f.generator != nil {
		report, err := f.generator.ForSession(ctx, id)
		if err != nil {
			genErr = fmt.Errorf("generate feedback: %w", err)
		} else if f.logger != nil {
			f.logger.Info("feedback ready", "session_id", id, "overall_score", report.OverallScore)
		}
	}

	var nextErr error
	if f.next != nil {
		nextErr = f.next.Handoff(ctx, id)
	}
	return errors.Join(genErr, nextErr)
}
