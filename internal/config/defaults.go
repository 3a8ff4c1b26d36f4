package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	synth := "espeak-ng --stdout -s 150"

	return Config{
		Interview: InterviewConfig{
			Type: "mixed",
			Timing: TimingConfig{
				GreetingLeadMS:    1000,
				SilenceMS:         2000,
				NoInputMS:         12000,
				ProcessingMS:      2000,
				TransitionPauseMS: 1000,
				ClosingMS:         10000,
			},
		},
		Speech: SpeechConfig{
			Input:          InputFallback,
			Output:         OutputCommand,
			SynthCmd:       CommandConfig{Raw: synth, Argv: mustParseArgv(synth)},
			WordsPerMinute: 170,
		},
		Recognizer: RecognizerConfig{
			GRPC:                 "127.0.0.1:50051",
			LanguageCode:         "en-US",
			AutomaticPunctuation: true,
			DialTimeoutMS:        2000,
		},
		Deepgram: DeepgramConfig{
			BaseURL:     "https://api.deepgram.com/v1",
			Model:       "nova-2",
			Language:    "en-US",
			SmartFormat: true,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Store: StoreConfig{Backend: StoreFile},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "rehearse-indicator",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Transcript: TranscriptConfig{CapitalizeSentences: true},
		Vocab: VocabConfig{
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
	}
}
