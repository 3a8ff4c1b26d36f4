// Package config resolves, parses, validates, and defaults rehearse configuration.
package config

// Config is the fully materialized runtime configuration used by rehearse.
type Config struct {
	Interview  InterviewConfig  `yaml:"interview"`
	Speech     SpeechConfig     `yaml:"speech"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Deepgram   DeepgramConfig   `yaml:"deepgram"`
	Audio      AudioConfig      `yaml:"audio"`
	Store      StoreConfig      `yaml:"store"`
	Indicator  IndicatorConfig  `yaml:"indicator"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Vocab      VocabConfig      `yaml:"vocab"`
	HandoffCmd CommandConfig    `yaml:"handoff_cmd"`
	Debug      DebugConfig      `yaml:"debug"`
}

// InterviewConfig selects questions and pacing.
type InterviewConfig struct {
	Type          string       `yaml:"type"`
	QuestionsFile string       `yaml:"questions_file"`
	Timing        TimingConfig `yaml:"timing"`
}

// TimingConfig holds session delays in milliseconds.
type TimingConfig struct {
	GreetingLeadMS    int `yaml:"greeting_lead_ms"`
	SilenceMS         int `yaml:"silence_ms"`
	NoInputMS         int `yaml:"no_input_ms"`
	ProcessingMS      int `yaml:"processing_ms"`
	TransitionPauseMS int `yaml:"transition_pause_ms"`
	ClosingMS         int `yaml:"closing_ms"`
}

// Speech input and output backends.
const (
	InputRecognizer = "recognizer"
	InputDeepgram   = "deepgram"
	InputFallback   = "fallback"

	OutputCommand = "command"
	OutputTimed   = "timed"
)

// SpeechConfig chooses how the interviewer speaks and how answers are heard.
type SpeechConfig struct {
	Input          string        `yaml:"input"`
	Output         string        `yaml:"output"`
	SynthCmd       CommandConfig `yaml:"synth_cmd"`
	WordsPerMinute int           `yaml:"words_per_minute"`
}

// RecognizerConfig points at the gRPC streaming recognizer.
type RecognizerConfig struct {
	GRPC                 string `yaml:"grpc"`
	LanguageCode         string `yaml:"language_code"`
	Model                string `yaml:"model"`
	AutomaticPunctuation bool   `yaml:"automatic_punctuation"`
	DialTimeoutMS        int    `yaml:"dial_timeout_ms"`
}

// DeepgramConfig controls the hosted websocket recognizer. APIKey comes
// from the environment only.
type DeepgramConfig struct {
	APIKey      string `yaml:"-"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string `yaml:"input"`
	Fallback string `yaml:"fallback"`
}

// Store backends.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// StoreConfig selects where completed sessions are persisted.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	DSN     string `yaml:"dsn"`
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool   `yaml:"enable"`
	Backend        string `yaml:"backend"`
	DesktopAppName string `yaml:"desktop_app_name"`
	SoundEnable    bool   `yaml:"sound_enable"`
	ErrorTimeoutMS int    `yaml:"error_timeout_ms"`
}

// TranscriptConfig controls answer normalization.
type TranscriptConfig struct {
	CapitalizeSentences bool `yaml:"capitalize_sentences"`
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string            `yaml:"global"`
	Sets       map[string]VocabSet `yaml:"sets"`
	MaxPhrases int                 `yaml:"max_phrases"`
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string   `yaml:"-"`
	Boost   float64  `yaml:"boost"`
	Phrases []string `yaml:"phrases"`
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool `yaml:"enable_audio_dump"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to recognizer backends.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}
