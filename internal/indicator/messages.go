package indicator

import (
	"os"
	"strings"

	"github.com/rbright/rehearse/internal/fsm"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	greeting   string
	asking     string
	listening  string
	processing string
	complete   string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			greeting:   "Interview starting…",
			asking:     "Interviewer speaking…",
			listening:  "Listening…",
			processing: "Analyzing…",
			complete:   "Interview complete",
			errorText:  "Interview error",
		}
	}
}

func (m messages) phase(phase fsm.Phase) string {
	switch phase {
	case fsm.PhaseGreeting:
		return m.greeting
	case fsm.PhaseAsking:
		return m.asking
	case fsm.PhaseListening:
		return m.listening
	case fsm.PhaseProcessing:
		return m.processing
	case fsm.PhaseComplete:
		return m.complete
	default:
		return ""
	}
}
