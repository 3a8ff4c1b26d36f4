package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rbright/rehearse/internal/interview"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if _, err := interview.ParseType(cfg.Interview.Type); err != nil {
		return nil, fmt.Errorf("interview.type: %w", err)
	}
	t := cfg.Interview.Timing
	for _, field := range []struct {
		name  string
		value int
	}{
		{"greeting_lead_ms", t.GreetingLeadMS},
		{"silence_ms", t.SilenceMS},
		{"no_input_ms", t.NoInputMS},
		{"processing_ms", t.ProcessingMS},
		{"transition_pause_ms", t.TransitionPauseMS},
		{"closing_ms", t.ClosingMS},
	} {
		if field.value <= 0 {
			return nil, fmt.Errorf("interview.timing.%s must be > 0", field.name)
		}
	}
	if t.NoInputMS < t.SilenceMS {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"interview.timing.no_input_ms (%d) is shorter than silence_ms (%d); quiet starts will be cut off",
			t.NoInputMS, t.SilenceMS,
		)})
	}

	switch cfg.Speech.Input {
	case InputRecognizer, InputDeepgram, InputFallback:
	default:
		return nil, fmt.Errorf("speech.input must be one of: recognizer, deepgram, fallback")
	}
	switch cfg.Speech.Output {
	case OutputCommand:
		if len(cfg.Speech.SynthCmd.Argv) == 0 {
			return nil, fmt.Errorf("speech.synth_cmd must not be empty when speech.output=command")
		}
	case OutputTimed:
	default:
		return nil, fmt.Errorf("speech.output must be one of: command, timed")
	}
	if cfg.Speech.WordsPerMinute <= 0 {
		return nil, fmt.Errorf("speech.words_per_minute must be > 0")
	}

	if cfg.Speech.Input == InputRecognizer {
		if strings.TrimSpace(cfg.Recognizer.GRPC) == "" {
			return nil, fmt.Errorf("recognizer.grpc must not be empty")
		}
		if strings.TrimSpace(cfg.Recognizer.LanguageCode) == "" {
			return nil, fmt.Errorf("recognizer.language_code must not be empty")
		}
		if cfg.Recognizer.DialTimeoutMS <= 0 {
			return nil, fmt.Errorf("recognizer.dial_timeout_ms must be > 0")
		}
	}
	if cfg.Speech.Input == InputDeepgram {
		base := strings.TrimSpace(cfg.Deepgram.BaseURL)
		if base == "" {
			return nil, fmt.Errorf("deepgram.base_url must not be empty")
		}
		if !strings.HasPrefix(base, "https://") && !strings.HasPrefix(base, "http://") &&
			!strings.HasPrefix(base, "wss://") && !strings.HasPrefix(base, "ws://") {
			return nil, fmt.Errorf("deepgram.base_url must be an http(s) or ws(s) URL")
		}
	}

	switch cfg.Store.Backend {
	case StoreFile, StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(cfg.Store.DSN) == "" {
			warnings = append(warnings, Warning{Message: "store.backend=postgres without store.dsn; expecting " + EnvDatabaseURL})
		}
	default:
		return nil, fmt.Errorf("store.backend must be one of: file, memory, postgres")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}
	if cfg.HandoffCmd.Raw != "" && len(cfg.HandoffCmd.Argv) == 0 {
		return nil, fmt.Errorf("handoff_cmd is configured but empty")
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic recognizer hints.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	enabledSets := cfg.Vocab.GlobalSets
	if len(enabledSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range enabledSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if existing, exists := selected[phrase]; exists {
				if set.Boost > existing.boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
					selected[phrase] = candidate{boost: set.Boost, from: name}
				}
				continue
			}
			selected[phrase] = candidate{boost: set.Boost, from: name}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}

	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Phrase == phrases[j].Phrase {
			return phrases[i].Boost < phrases[j].Boost
		}
		return phrases[i].Phrase < phrases[j].Phrase
	})

	return phrases, warnings, nil
}
