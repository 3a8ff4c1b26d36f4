package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML document over base and validates the result.
// Unknown keys are rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	cfg.Vocab.Sets = cloneSets(base.Vocab.Sets)

	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, nil, err
	}

	for name, set := range cfg.Vocab.Sets {
		set.Name = name
		cfg.Vocab.Sets[name] = set
	}
	cfg.Speech.Input = strings.ToLower(strings.TrimSpace(cfg.Speech.Input))
	cfg.Speech.Output = strings.ToLower(strings.TrimSpace(cfg.Speech.Output))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

// UnmarshalYAML accepts a command line string and splits it into argv.
func (c *CommandConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: command must be a string: %w", node.Line, err)
	}
	argv, err := parseArgv(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	c.Raw = raw
	c.Argv = argv
	return nil
}

// MarshalYAML writes the command back as its raw string.
func (c CommandConfig) MarshalYAML() (any, error) {
	return c.Raw, nil
}

func cloneSets(in map[string]VocabSet) map[string]VocabSet {
	out := make(map[string]VocabSet, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
