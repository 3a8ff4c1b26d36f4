// Package interview defines the mock-interview question bank, session, and persisted record types.
package interview

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the kind of interview question.
type Category string

const (
	CategoryBehavioral  Category = "behavioral"
	CategoryTechnical   Category = "technical"
	CategorySituational Category = "situational"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBehavioral, CategoryTechnical, CategorySituational:
		return true
	default:
		return false
	}
}

// Question is one immutable prompt in a session's ordered question list.
type Question struct {
	ID        int      `json:"id" yaml:"id"`
	Text      string   `json:"question" yaml:"question"`
	Category  Category `json:"category" yaml:"category"`
	TimeLimit int      `json:"timeLimit" yaml:"time_limit"`
}

// Response is the record of one answered question. It is never mutated after creation.
type Response struct {
	QuestionID int       `json:"questionId"`
	Transcript string    `json:"response"`
	Duration   int       `json:"duration"`
	CapturedAt time.Time `json:"timestamp"`
}

// Session is the controller-owned state of one interview run.
type Session struct {
	ID            string
	StartTime     time.Time
	Questions     []Question
	CurrentIndex  int
	Responses     []Response
	TotalDuration int
}

// NewSession starts a session over a copy of questions with a time-ordered identifier.
func NewSession(questions []Question, now time.Time) (Session, error) {
	if len(questions) == 0 {
		return Session{}, ErrNoQuestions
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}
	return Session{
		ID:        id.String(),
		StartTime: now,
		Questions: append([]Question(nil), questions...),
	}, nil
}

// Current returns the question under the cursor.
func (s *Session) Current() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Record appends a response for the current question. Blank transcripts are not recorded.
func (s *Session) Record(transcript string, duration time.Duration, at time.Time) (Response, bool) {
	q, ok := s.Current()
	if !ok || strings.TrimSpace(transcript) == "" {
		return Response{}, false
	}
	if n := len(s.Responses); n > 0 && s.Responses[n-1].QuestionID == q.ID {
		return Response{}, false
	}
	resp := Response{
		QuestionID: q.ID,
		Transcript: transcript,
		Duration:   int(duration.Round(time.Second) / time.Second),
		CapturedAt: at,
	}
	s.Responses = append(s.Responses, resp)
	return resp, true
}

// Advance moves the cursor forward and reports whether a question remains.
func (s *Session) Advance() bool {
	if s.CurrentIndex < len(s.Questions) {
		s.CurrentIndex++
	}
	return s.CurrentIndex < len(s.Questions)
}

// Finish produces the persisted form of the session.
func (s *Session) Finish(completedAt time.Time) Record {
	return Record{
		ID:            s.ID,
		StartTime:     s.StartTime,
		Questions:     append(make([]Question, 0, len(s.Questions)), s.Questions...),
		Responses:     append(make([]Response, 0, len(s.Responses)), s.Responses...),
		TotalDuration: s.TotalDuration,
		CompletedAt:   completedAt,
	}
}

// Record is the serialized, completed session keyed by its identifier.
type Record struct {
	ID            string     `json:"id"`
	StartTime     time.Time  `json:"startTime"`
	Questions     []Question `json:"questions"`
	Responses     []Response `json:"responses"`
	TotalDuration int        `json:"totalDuration"`
	CompletedAt   time.Time  `json:"completedAt"`
}

// Key is the store key for the record.
func (r Record) Key() string {
	return RecordKey(r.ID)
}

// RecordKey returns the store key for a session identifier.
func RecordKey(id string) string {
	return "interview_" + id
}

// FeedbackKey returns the store key for a session's generated feedback.
func FeedbackKey(id string) string {
	return "feedback_" + id
}
