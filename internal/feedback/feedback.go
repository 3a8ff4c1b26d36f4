// Package feedback scores recorded answers and aggregates a session report.
package feedback

import (
	"fmt"
	"math"
	"time"

	"github.com/rbright/rehearse/internal/interview"
)

// Pacing band in words per minute.
const (
	MinPaceWPM = 120
	MaxPaceWPM = 180
)

// StarAnalysis records which STAR components an answer covered.
type StarAnalysis struct {
	QuestionID int    `json:"questionId"`
	Situation  bool   `json:"situation"`
	Task       bool   `json:"task"`
	Action     bool   `json:"action"`
	Result     bool   `json:"result"`
	Feedback   string `json:"feedback"`
}

// Score is the percentage of STAR components present.
func (s StarAnalysis) Score() int {
	n := 0
	for _, ok := range []bool{s.Situation, s.Task, s.Action, s.Result} {
		if ok {
			n++
		}
	}
	return n * 25
}

// ResponseFeedback is the per-answer evaluation.
type ResponseFeedback struct {
	QuestionID     int          `json:"questionId"`
	WordCount      int          `json:"wordCount"`
	WordsPerMinute int          `json:"wordsPerMinute"`
	FillerWords    int          `json:"fillerWords"`
	ClarityScore   int          `json:"clarityScore"`
	PacingScore    int          `json:"pacingScore"`
	Star           StarAnalysis `json:"star"`
}

// SpeechMetrics summarizes delivery across the session.
type SpeechMetrics struct {
	WordsPerMinute int    `json:"wordsPerMinute"`
	Pacing         string `json:"pacing"`
}

// Report is the persisted feedback document for one session.
type Report struct {
	SessionID         string             `json:"sessionId"`
	OverallScore      int                `json:"overallScore"`
	StarScore         int                `json:"starScore"`
	ClarityScore      int                `json:"clarityScore"`
	PacingScore       int                `json:"pacingScore"`
	FillerWordCount   int                `json:"fillerWordCount"`
	AvgResponseTime   int                `json:"avgResponseTime"`
	TotalDuration     int                `json:"totalDuration"`
	QuestionsAnswered int                `json:"questionsAnswered"`
	QuestionsAsked    int                `json:"questionsAsked"`
	Strengths         []string           `json:"strengths"`
	Improvements      []string           `json:"improvements"`
	StarAnalysis      []StarAnalysis     `json:"starAnalysis"`
	Responses         []ResponseFeedback `json:"responses"`
	SpeechMetrics     SpeechMetrics      `json:"speechMetrics"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

// Scorer evaluates one answer to one question.
type Scorer interface {
	ScoreResponse(q interview.Question, r interview.Response) ResponseFeedback
}

// Generate scores every response in record and aggregates the results.
func Generate(record interview.Record, scorer Scorer, now time.Time) Report {
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	questions := make(map[int]interview.Question, len(record.Questions))
	for _, q := range record.Questions {
		questions[q.ID] = q
	}

	report := Report{
		SessionID:         record.ID,
		TotalDuration:     record.TotalDuration,
		QuestionsAnswered: len(record.Responses),
		QuestionsAsked:    len(record.Questions),
		Strengths:         []string{},
		Improvements:      []string{},
		StarAnalysis:      []StarAnalysis{},
		Responses:         []ResponseFeedback{},
		GeneratedAt:       now.UTC(),
	}
	if len(record.Responses) == 0 {
		report.Improvements = append(report.Improvements,
			"No answers were recorded. Speak after each question and pause when you are done.")
		report.SpeechMetrics.Pacing = pacingNote(0)
		return report
	}

	var starSum, claritySum, pacingSum, words, seconds int
	for _, resp := range record.Responses {
		fb := scorer.ScoreResponse(questions[resp.QuestionID], resp)
		report.Responses = append(report.Responses, fb)
		report.StarAnalysis = append(report.StarAnalysis, fb.Star)
		report.FillerWordCount += fb.FillerWords
		starSum += fb.Star.Score()
		claritySum += fb.ClarityScore
		pacingSum += fb.PacingScore
		words += fb.WordCount
		seconds += resp.Duration
	}

	n := len(record.Responses)
	report.StarScore = roundDiv(starSum, n)
	report.ClarityScore = roundDiv(claritySum, n)
	report.PacingScore = roundDiv(pacingSum, n)
	report.AvgResponseTime = roundDiv(seconds, n)
	report.OverallScore = int(math.Round(0.4*float64(report.StarScore) + 0.35*float64(report.ClarityScore) + 0.25*float64(report.PacingScore)))
	report.SpeechMetrics.WordsPerMinute = wordsPerMinute(words, seconds)
	report.SpeechMetrics.Pacing = pacingNote(report.SpeechMetrics.WordsPerMinute)

	report.Strengths, report.Improvements = assess(report)
	return report
}

func assess(r Report) (strengths []string, improvements []string) {
	strengths, improvements = []string{}, []string{}

	if r.StarScore >= 75 {
		strengths = append(strengths, "Answers follow the STAR structure with clear situations, actions, and results")
	} else {
		missing := missingStar(r.StarAnalysis)
		if missing != "" {
			improvements = append(improvements, fmt.Sprintf("Cover every STAR component; answers most often lacked the %s", missing))
		}
	}

	if r.ClarityScore >= 80 {
		strengths = append(strengths, "Clear, direct delivery with few filler words")
	}
	if r.FillerWordCount > 0 {
		improvements = append(improvements, fmt.Sprintf("Minimize filler words; %d detected across your answers", r.FillerWordCount))
	}

	switch wpm := r.SpeechMetrics.WordsPerMinute; {
	case wpm > MaxPaceWPM:
		improvements = append(improvements, "Slow your speaking pace by 10-15% for easier comprehension")
	case wpm > 0 && wpm < MinPaceWPM:
		improvements = append(improvements, "Pick up your pace slightly to keep answers engaging")
	case wpm > 0:
		strengths = append(strengths, "Good pacing for an interview setting")
	}

	if r.QuestionsAnswered < r.QuestionsAsked {
		improvements = append(improvements, fmt.Sprintf("Answer every question; %d of %d were skipped", r.QuestionsAsked-r.QuestionsAnswered, r.QuestionsAsked))
	} else if r.QuestionsAsked > 0 {
		strengths = append(strengths, "Answered every question")
	}
	return strengths, improvements
}

// missingStar names the STAR component absent from the most answers.
func missingStar(analyses []StarAnalysis) string {
	counts := [4]int{}
	for _, a := range analyses {
		for i, ok := range []bool{a.Situation, a.Task, a.Action, a.Result} {
			if !ok {
				counts[i]++
			}
		}
	}
	names := [4]string{"situation", "task", "action", "result"}
	best, worst := -1, 0
	for i, c := range counts {
		if c > worst {
			best, worst = i, c
		}
	}
	if best < 0 {
		return ""
	}
	return names[best]
}

func pacingNote(wpm int) string {
	switch {
	case wpm == 0:
		return "No speech measured"
	case wpm > MaxPaceWPM:
		return "Too fast - consider slowing down"
	case wpm < MinPaceWPM:
		return "Too slow - try to increase pace"
	default:
		return "Good pacing for interview context"
	}
}

func wordsPerMinute(words, seconds int) int {
	if words == 0 || seconds <= 0 {
		return 0
	}
	return int(math.Round(float64(words) * 60 / float64(seconds)))
}

func roundDiv(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}
