package interview

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoQuestions indicates a session was requested with an empty question list.
	ErrNoQuestions = errors.New("interview has no questions")
)

// Type selects which categories an interview draws from.
type Type string

const (
	TypeBehavioral Type = "behavioral"
	TypeTechnical  Type = "technical"
	TypeMixed      Type = "mixed"
)

// ParseType resolves a user-supplied interview type. Empty means mixed.
func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return TypeMixed, nil
	case TypeBehavioral, TypeTechnical, TypeMixed:
		return t, nil
	default:
		return "", fmt.Errorf("unknown interview type %q (want behavioral, technical, or mixed)", raw)
	}
}

// DefaultQuestions is the built-in question bank.
func DefaultQuestions() []Question {
	return []Question{
		{ID: 1, Text: "Tell me about yourself and why you're interested in this position.", Category: CategoryBehavioral, TimeLimit: 120},
		{ID: 2, Text: "Describe a challenging project you worked on. What was your role and how did you overcome obstacles?", Category: CategoryBehavioral, TimeLimit: 180},
		{ID: 3, Text: "How would you explain a complex technical concept to a non-technical stakeholder?", Category: CategorySituational, TimeLimit: 120},
		{ID: 4, Text: "Walk me through your approach to debugging a performance issue in a web application.", Category: CategoryTechnical, TimeLimit: 180},
		{ID: 5, Text: "Tell me about a time when you had to work with a difficult team member. How did you handle it?", Category: CategoryBehavioral, TimeLimit: 150},
	}
}

// Select filters the bank for an interview type, preserving order.
// Situational questions belong to every type.
func Select(bank []Question, t Type) ([]Question, error) {
	out := make([]Question, 0, len(bank))
	for _, q := range bank {
		switch {
		case t == TypeMixed, q.Category == CategorySituational:
			out = append(out, q)
		case t == TypeBehavioral && q.Category == CategoryBehavioral:
			out = append(out, q)
		case t == TypeTechnical && q.Category == CategoryTechnical:
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w for type %s", ErrNoQuestions, t)
	}
	return out, nil
}

type bankFile struct {
	Questions []Question `yaml:"questions"`
}

// LoadBank reads a YAML question bank from path.
func LoadBank(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank %q: %w", path, err)
	}
	questions, err := ParseBank(data)
	if err != nil {
		return nil, fmt.Errorf("question bank %q: %w", path, err)
	}
	return questions, nil
}

// ParseBank decodes and validates a YAML question bank document.
func ParseBank(data []byte) ([]Question, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file bankFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoQuestions
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := ValidateBank(file.Questions); err != nil {
		return nil, err
	}
	return file.Questions, nil
}

// ValidateBank checks ids are unique and positive and each question is usable.
func ValidateBank(questions []Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	seen := make(map[int]struct{}, len(questions))
	for i, q := range questions {
		if q.ID <= 0 {
			return fmt.Errorf("question %d: id must be > 0", i+1)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %d: duplicate id %d", i+1, q.ID)
		}
		seen[q.ID] = struct{}{}
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d: text must not be empty", q.ID)
		}
		if !q.Category.Valid() {
			return fmt.Errorf("question %d: unknown category %q", q.ID, q.Category)
		}
		if q.TimeLimit < 0 {
			return fmt.Errorf("question %d: time_limit must be >= 0", q.ID)
		}
	}
	return nil
}

// Resolve loads the bank at path, or the built-in bank when path is empty,
// and selects the questions for rawType.
func Resolve(path string, rawType string) ([]Question, error) {
	t, err := ParseType(rawType)
	if err != nil {
		return nil, err
	}
	bank := DefaultQuestions()
	if strings.TrimSpace(path) != "" {
		bank, err = LoadBank(path)
		if err != nil {
			return nil, err
		}
	}
	return Select(bank, t)
}
