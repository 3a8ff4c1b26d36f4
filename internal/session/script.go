package session

import (
	"fmt"
	"time"

	"github.com/rbright/rehearse/internal/fsm"
)

const (
	GreetingText   = "Hello! Welcome to your mock interview. I'll be asking you a series of questions to help you practice. Please speak naturally and I'll listen to your responses. Let's begin with the first question."
	TransitionText = "Thank you for that response. Here's your next question."
	ClosingText    = "Thank you for completing the interview. I'm now generating your detailed performance report with analysis of your responses, clarity, pacing, and use of the STAR methodology."

	// FallbackTranscript stands in for speech when no recognizer is available.
	FallbackTranscript = "This is a mock response for demonstration purposes. In a real implementation, this would be your actual spoken response transcribed in real-time."
)

// Timing holds every delay the controller schedules.
type Timing struct {
	GreetingLead    time.Duration
	SilenceTimeout  time.Duration
	NoInputTimeout  time.Duration
	ProcessingDelay time.Duration
	TransitionPause time.Duration
	Tick            time.Duration
	StopTimeout     time.Duration
	ClosingTimeout  time.Duration
	PersistTimeout  time.Duration
	HandoffTimeout  time.Duration
}

// DefaultTiming returns the production pacing of an interview.
func DefaultTiming() Timing {
	return Timing{
		GreetingLead:    time.Second,
		SilenceTimeout:  2 * time.Second,
		NoInputTimeout:  12 * time.Second,
		ProcessingDelay: 2 * time.Second,
		TransitionPause: time.Second,
		Tick:            time.Second,
		StopTimeout:     5 * time.Second,
		ClosingTimeout:  10 * time.Second,
		PersistTimeout:  5 * time.Second,
		HandoffTimeout:  5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultTiming.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.GreetingLead, d.GreetingLead)
	fill(&t.SilenceTimeout, d.SilenceTimeout)
	fill(&t.NoInputTimeout, d.NoInputTimeout)
	fill(&t.ProcessingDelay, d.ProcessingDelay)
	fill(&t.TransitionPause, d.TransitionPause)
	fill(&t.Tick, d.Tick)
	fill(&t.StopTimeout, d.StopTimeout)
	fill(&t.ClosingTimeout, d.ClosingTimeout)
	fill(&t.PersistTimeout, d.PersistTimeout)
	fill(&t.HandoffTimeout, d.HandoffTimeout)
	return t
}

// PhaseMessage is the user-facing line shown while a phase is active.
func PhaseMessage(phase fsm.Phase, index int, total int) string {
	switch phase {
	case fsm.PhaseGreeting:
		return "AI is introducing the interview..."
	case fsm.PhaseAsking:
		return fmt.Sprintf("AI is asking question %d of %d...", index+1, total)
	case fsm.PhaseListening:
		return "Listening to your response..."
	case fsm.PhaseProcessing:
		return "Analyzing your response..."
	case fsm.PhaseComplete:
		return "Interview complete! Generating report..."
	default:
		return ""
	}
}

// promptText is the utterance that introduces question index.
func promptText(index int, question string) string {
	if index == 0 {
		return question
	}
	return TransitionText + " " + question
}
