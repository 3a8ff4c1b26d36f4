package fsm

import "fmt"

type Phase string

type Event string

const (
	PhaseSetup      Phase = "setup"
	PhaseGreeting   Phase = "greeting"
	PhaseAsking     Phase = "asking"
	PhaseListening  Phase = "listening"
	PhaseProcessing Phase = "processing"
	PhaseComplete   Phase = "complete"
)

const (
	EventStart    Event = "start"
	EventSpoken   Event = "spoken"
	EventFinalize Event = "finalize"
	EventSkip     Event = "skip"
	EventNext     Event = "next"
	EventFinish   Event = "finish"
	EventEnd      Event = "end"
)

// Terminal reports whether no further events are accepted from p.
func (p Phase) Terminal() bool {
	return p == PhaseComplete
}

func Transition(current Phase, event Event) (Phase, error) {
	if event == EventEnd {
		switch current {
		case PhaseSetup, PhaseGreeting, PhaseAsking, PhaseListening, PhaseProcessing:
			return PhaseComplete, nil
		}
	}

	switch current {
	case PhaseSetup:
		switch event {
		case EventStart:
			return PhaseGreeting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseGreeting:
		switch event {
		case EventSpoken:
			return PhaseAsking, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseAsking:
		switch event {
		case EventSpoken:
			return PhaseListening, nil
		case EventSkip:
			return PhaseProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseListening:
		switch event {
		case EventFinalize, EventSkip:
			return PhaseProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseProcessing:
		switch event {
		case EventNext:
			return PhaseAsking, nil
		case EventFinish:
			return PhaseComplete, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseComplete:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown phase %q", current)
	}
}

func invalidTransition(phase Phase, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", phase, event)
}
