package interview

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewSessionAssignsTimeOrderedID(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	first, err := NewSession(DefaultQuestions(), now)
	require.NoError(t, err)
	second, err := NewSession(DefaultQuestions(), now)
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	parsed, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), parsed.Version())
	require.Equal(t, now, first.StartTime)
	require.Len(t, first.Questions, 5)
	require.Zero(t, first.CurrentIndex)
}

func TestNewSessionRejectsEmptyQuestions(t *testing.T) {
	_, err := NewSession(nil, time.Now())
	require.ErrorIs(t, err, ErrNoQuestions)
}

func TestNewSessionCopiesQuestions(t *testing.T) {
	bank := DefaultQuestions()
	s, err := NewSession(bank, time.Now())
	require.NoError(t, err)

	bank[0].Text = "mutated"
	require.NotEqual(t, "mutated", s.Questions[0].Text)
}

func TestSessionRecordSkipsBlankAndDuplicates(t *testing.T) {
	s, err := NewSession(DefaultQuestions()[:2], time.Now())
	require.NoError(t, err)

	_, ok := s.Record("   ", time.Second, time.Now())
	require.False(t, ok)
	require.Empty(t, s.Responses)

	resp, ok := s.Record("I led the migration.", 42*time.Second+400*time.Millisecond, time.Now())
	require.True(t, ok)
	require.Equal(t, 1, resp.QuestionID)
	require.Equal(t, 42, resp.Duration)

	_, ok = s.Record("again", time.Second, time.Now())
	require.False(t, ok)
	require.Len(t, s.Responses, 1)
}

func TestSessionAdvanceStopsAtEnd(t *testing.T) {
	s, err := NewSession(DefaultQuestions()[:2], time.Now())
	require.NoError(t, err)

	require.True(t, s.Advance())
	require.Equal(t, 1, s.CurrentIndex)
	require.False(t, s.Advance())
	require.Equal(t, 2, s.CurrentIndex)
	require.False(t, s.Advance())
	require.Equal(t, 2, s.CurrentIndex)

	_, ok := s.Current()
	require.False(t, ok)
	_, ok = s.Record("late answer", time.Second, time.Now())
	require.False(t, ok)
}

func TestRecordJSONShape(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	s := Session{
		ID:        "abc",
		StartTime: start,
		Questions: DefaultQuestions()[:1],
	}
	s.Record("hello", 3*time.Second, start.Add(5*time.Second))
	s.TotalDuration = 12

	data, err := json.Marshal(s.Finish(start.Add(20 * time.Second)))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"id", "startTime", "questions", "responses", "totalDuration", "completedAt"} {
		require.Contains(t, raw, key)
	}
	responses := raw["responses"].([]any)
	first := responses[0].(map[string]any)
	require.Equal(t, float64(1), first["questionId"])
	require.Equal(t, "hello", first["response"])
	require.Equal(t, "interview_abc", Record{ID: "abc"}.Key())
	require.Equal(t, "feedback_abc", FeedbackKey("abc"))
}

func TestFinishWithoutAnswersKeepsEmptyArrays(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	s := Session{ID: "abc", StartTime: start}

	data, err := json.Marshal(s.Finish(start.Add(time.Minute)))
	require.NoError(t, err)
	require.Contains(t, string(data), `"responses":[]`)
	require.Contains(t, string(data), `"questions":[]`)
	require.NotContains(t, string(data), "null")
}

func TestSelectByType(t *testing.T) {
	bank := DefaultQuestions()

	mixed, err := Select(bank, TypeMixed)
	require.NoError(t, err)
	require.Len(t, mixed, 5)

	behavioral, err := Select(bank, TypeBehavioral)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 5}, ids(behavioral))

	technical, err := Select(bank, TypeTechnical)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, ids(technical))

	_, err = Select(bank[:1], TypeTechnical)
	require.ErrorIs(t, err, ErrNoQuestions)
}

func TestParseType(t *testing.T) {
	got, err := ParseType("")
	require.NoError(t, err)
	require.Equal(t, TypeMixed, got)

	got, err = ParseType(" Technical ")
	require.NoError(t, err)
	require.Equal(t, TypeTechnical, got)

	_, err = ParseType("panel")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown interview type")
}

func TestLoadBankParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	contents := `
questions:
  - id: 10
    question: "Why this team?"
    category: behavioral
    time_limit: 90
  - id: 11
    question: "Design a rate limiter."
    category: technical
    time_limit: 300
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	questions, err := LoadBank(path)
	require.NoError(t, err)
	require.Equal(t, []Question{
		{ID: 10, Text: "Why this team?", Category: CategoryBehavioral, TimeLimit: 90},
		{ID: 11, Text: "Design a rate limiter.", Category: CategoryTechnical, TimeLimit: 300},
	}, questions)
}

func TestParseBankRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "empty", doc: "", wantErr: "no questions"},
		{name: "unknown field", doc: "questions:\n  - id: 1\n    question: q\n    category: technical\n    weight: 3\n", wantErr: "weight"},
		{name: "duplicate id", doc: "questions:\n  - {id: 1, question: a, category: technical}\n  - {id: 1, question: b, category: technical}\n", wantErr: "duplicate id"},
		{name: "bad category", doc: "questions:\n  - {id: 1, question: a, category: trivia}\n", wantErr: "unknown category"},
		{name: "blank text", doc: "questions:\n  - {id: 1, question: ' ', category: technical}\n", wantErr: "text must not be empty"},
		{name: "zero id", doc: "questions:\n  - {id: 0, question: a, category: technical}\n", wantErr: "id must be > 0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseBank([]byte(tc.doc))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadBankMissingFile(t *testing.T) {
	_, err := LoadBank(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read question bank")
}

func TestResolveUsesBuiltInBankAndType(t *testing.T) {
	questions, err := Resolve("", "technical")
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, ids(questions))

	_, err = Resolve("", "trivia")
	require.ErrorContains(t, err, "unknown interview type")

	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("questions:\n  - {id: 7, question: a, category: technical}\n"), 0o600))
	_, err = Resolve(path, "behavioral")
	require.ErrorIs(t, err, ErrNoQuestions)
}

func ids(questions []Question) []int {
	out := make([]int, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.ID)
	}
	return out
}
