package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/feedback"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/store"
)

func (r Runner) commandQuestions(cfg config.Config, rawType string) int {
	if strings.TrimSpace(rawType) == "" {
		rawType = cfg.Interview.Type
	}
	questions, err := interview.Resolve(cfg.Interview.QuestionsFile, rawType)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	for i, q := range questions {
		fmt.Fprintf(r.Stdout, "%d. [%s, %ds] %s\n", i+1, q.Category, q.TimeLimit, q.Text)
	}
	return 0
}

func (r Runner) commandSessions(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open store: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	summaries, err := st.List(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(summaries) == 0 {
		fmt.Fprintln(r.Stdout, "no saved interviews")
		return 0
	}
	for _, s := range summaries {
		mark := " "
		if s.HasFeedback {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %s | %s | %d/%d answered\n",
			mark, s.ID, s.StartTime.Local().Format("2006-01-02 15:04"), s.Responses, s.Questions)
	}
	return 0
}

func (r Runner) commandFeedback(ctx context.Context, cfg config.Config, id string, logger *slog.Logger) int {
	id = strings.TrimSpace(id)
	if err := store.ValidateID(id); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open store: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	report, err := feedback.NewService(st, nil, logger).Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(r.Stderr, "error: no saved interview %s\n", id)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	printReport(r, report)
	return 0
}

func printReport(r Runner, report feedback.Report) {
	fmt.Fprintf(r.Stdout, "Session %s\n", report.SessionID)
	fmt.Fprintf(r.Stdout, "Overall %d | STAR %d | Clarity %d | Pacing %d\n",
		report.OverallScore, report.StarScore, report.ClarityScore, report.PacingScore)
	fmt.Fprintf(r.Stdout, "Answered %d of %d | avg response %ds | %d wpm (%s) | %d filler words\n",
		report.QuestionsAnswered, report.QuestionsAsked, report.AvgResponseTime,
		report.SpeechMetrics.WordsPerMinute, report.SpeechMetrics.Pacing, report.FillerWordCount)

	printList(r, "Strengths", report.Strengths)
	printList(r, "Improvements", report.Improvements)

	if len(report.StarAnalysis) > 0 {
		fmt.Fprintln(r.Stdout, "STAR analysis:")
		for _, star := range report.StarAnalysis {
			fmt.Fprintf(r.Stdout, "  Q%d %s%s%s%s %s\n", star.QuestionID,
				flag("S", star.Situation), flag("T", star.Task), flag("A", star.Action), flag("R", star.Result),
				star.Feedback)
		}
	}
}

func printList(r Runner, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(r.Stdout, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(r.Stdout, "  - %s\n", item)
	}
}

func flag(letter string, ok bool) string {
	if ok {
		return letter
	}
	return "-"
}
