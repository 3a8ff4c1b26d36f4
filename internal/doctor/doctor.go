// Package doctor runs readiness diagnostics for config, speech backends, audio, and storage.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/hypr"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/recognizer"
	"github.com/rbright/rehearse/internal/store"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment, config, and runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}
	c := cfg.Config

	checks = append(checks, checkQuestions(c.Interview))
	checks = append(checks, checkSpeechInput(ctx, c)...)
	checks = append(checks, checkSpeechOutput(c.Speech))
	checks = append(checks, checkStore(ctx, c.Store))
	checks = append(checks, checkIndicator(ctx, c.Indicator)...)

	if len(c.HandoffCmd.Argv) > 0 {
		checks = append(checks, checkCommand(c.HandoffCmd.Argv, "handoff_cmd"))
	}

	return Report{Checks: checks}
}

func checkQuestions(cfg config.InterviewConfig) Check {
	questions, err := interview.Resolve(cfg.QuestionsFile, cfg.Type)
	if err != nil {
		return Check{Name: "questions", Pass: false, Message: err.Error()}
	}
	source := "built-in bank"
	if strings.TrimSpace(cfg.QuestionsFile) != "" {
		source = cfg.QuestionsFile
	}
	return Check{Name: "questions", Pass: true, Message: fmt.Sprintf("%d questions from %s", len(questions), source)}
}

func checkSpeechInput(ctx context.Context, cfg config.Config) []Check {
	switch cfg.Speech.Input {
	case config.InputFallback:
		return []Check{{Name: "speech.input", Pass: true, Message: "fallback transcripts; microphone unused"}}
	case config.InputDeepgram:
		return []Check{checkDeepgramKey(cfg.Deepgram), checkAudioSelection(ctx, cfg.Audio)}
	default:
		return []Check{checkRecognizerReady(ctx, cfg.Recognizer), checkAudioSelection(ctx, cfg.Audio)}
	}
}

func checkDeepgramKey(cfg config.DeepgramConfig) Check {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Check{Name: "deepgram.api_key", Pass: false, Message: config.EnvDeepgramAPIKey + " is not set"}
	}
	return Check{Name: "deepgram.api_key", Pass: true, Message: "API key present"}
}

// checkRecognizerReady dials the recognizer and queries its health service.
func checkRecognizerReady(ctx context.Context, cfg config.RecognizerConfig) Check {
	timeout := time.Duration(cfg.DialTimeoutMS) * time.Millisecond
	if err := recognizer.CheckHealth(ctx, cfg.GRPC, timeout); err != nil {
		return Check{Name: "recognizer.ready", Pass: false, Message: err.Error()}
	}
	return Check{Name: "recognizer.ready", Pass: true, Message: fmt.Sprintf("serving at %s", cfg.GRPC)}
}

func checkSpeechOutput(cfg config.SpeechConfig) Check {
	if cfg.Output == config.OutputTimed {
		return Check{Name: "speech.output", Pass: true, Message: "timed pacing; no synthesizer"}
	}
	check := checkCommand(cfg.SynthCmd.Argv, "synth_cmd")
	if !check.Pass {
		check.Message += " (interviewer falls back to timed pacing)"
	}
	return check
}

// checkStore opens the configured backend to surface connection and permission issues.
func checkStore(ctx context.Context, cfg config.StoreConfig) Check {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg, nil)
	if err != nil {
		return Check{Name: "store", Pass: false, Message: err.Error()}
	}
	defer st.Close()

	summaries, err := st.List(ctx)
	if err != nil {
		return Check{Name: "store", Pass: false, Message: err.Error()}
	}
	backend := cfg.Backend
	if backend == "" {
		backend = config.StoreFile
	}
	return Check{Name: "store", Pass: true, Message: fmt.Sprintf("%s backend, %d saved sessions", backend, len(summaries))}
}

func checkIndicator(ctx context.Context, cfg config.IndicatorConfig) []Check {
	if !cfg.Enable {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		return []Check{checkBinary("busctl", "desktop notifications")}
	}

	checks := []Check{checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty")}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	info, err := hypr.Version(ctx)
	if err != nil {
		return append(checks, Check{Name: "hyprctl", Pass: false, Message: err.Error()})
	}
	return append(checks, Check{Name: "hyprctl", Pass: true, Message: fmt.Sprintf("Hyprland %s", info.Tag)})
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	check := checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
	check.Name = name
	return check
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
