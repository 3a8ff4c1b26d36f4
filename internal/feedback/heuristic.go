package feedback

import (
	"strings"

	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/transcript"
)

var fillerWords = map[string]bool{
	"um": true, "uh": true, "umm": true, "uhh": true, "er": true,
	"like": true, "basically": true, "actually": true, "literally": true,
}

var fillerPhrases = []string{"you know", "i mean", "sort of", "kind of"}

var starCues = struct {
	situation, task, action, result []string
}{
	situation: []string{"when i", "at my", "there was", "we were", "back in", "at the time", "in my previous", "in my last", "situation"},
	task:      []string{"my role", "responsible for", "my responsibility", "i needed to", "i had to", "my goal", "the goal was", "tasked with", "my job was"},
	action:    []string{"i decided", "i implemented", "i built", "i led", "i worked", "i created", "i started", "i organized", "i set up", "i wrote", "so i", "i reached out", "i proposed"},
	result:    []string{"as a result", "resulted in", "which led", "led to", "percent", "%", "increased", "reduced", "improved", "saved", "in the end", "outcome", "we shipped", "we delivered"},
}

// HeuristicScorer scores answers from their text and timing alone.
type HeuristicScorer struct{}

// ScoreResponse implements Scorer.
func (HeuristicScorer) ScoreResponse(q interview.Question, r interview.Response) ResponseFeedback {
	tokens := transcript.Words(r.Transcript)
	lower := " " + strings.Join(tokens, " ") + " "
	lowerRaw := strings.ToLower(r.Transcript)

	fillers := 0
	for _, w := range tokens {
		if fillerWords[w] {
			fillers++
		}
	}
	for _, phrase := range fillerPhrases {
		fillers += strings.Count(lower, " "+phrase+" ")
	}

	star := StarAnalysis{
		QuestionID: r.QuestionID,
		Situation:  hasCue(lower, lowerRaw, starCues.situation),
		Task:       hasCue(lower, lowerRaw, starCues.task),
		Action:     hasCue(lower, lowerRaw, starCues.action),
		Result:     hasCue(lower, lowerRaw, starCues.result),
	}
	star.Feedback = starFeedback(star, q.Category)

	wpm := wordsPerMinute(len(tokens), r.Duration)
	return ResponseFeedback{
		QuestionID:     r.QuestionID,
		WordCount:      len(tokens),
		WordsPerMinute: wpm,
		FillerWords:    fillers,
		ClarityScore:   clarityScore(len(tokens), fillers),
		PacingScore:    pacingScore(wpm),
		Star:           star,
	}
}

func hasCue(lower, raw string, cues []string) bool {
	for _, cue := range cues {
		if cue == "%" {
			if strings.Contains(raw, "%") {
				return true
			}
			continue
		}
		if strings.Contains(lower, " "+cue+" ") {
			return true
		}
	}
	return false
}

// clarityScore penalizes filler density and very short answers.
func clarityScore(wordCount, fillers int) int {
	if wordCount == 0 {
		return 0
	}
	score := 100 - int(float64(fillers)/float64(wordCount)*400)
	if wordCount < 30 {
		score -= 20
	}
	return clamp(score)
}

// pacingScore is 100 inside the pacing band and falls off outside it.
func pacingScore(wpm int) int {
	switch {
	case wpm == 0:
		return 0
	case wpm < MinPaceWPM:
		return clamp(100 - (MinPaceWPM - wpm))
	case wpm > MaxPaceWPM:
		return clamp(100 - (wpm - MaxPaceWPM))
	default:
		return 100
	}
}

func starFeedback(s StarAnalysis, category interview.Category) string {
	var missing []string
	if !s.Situation {
		missing = append(missing, "set the situation")
	}
	if !s.Task {
		missing = append(missing, "state your responsibility")
	}
	if !s.Action {
		missing = append(missing, "describe the specific actions you took")
	}
	if !s.Result {
		missing = append(missing, "close with a measurable result")
	}
	if len(missing) == 0 {
		return "Complete STAR structure with a clear situation, task, actions, and results."
	}
	prefix := "To strengthen this answer, "
	if category == interview.CategoryTechnical {
		prefix = "Technical answers land better with a concrete example; "
	}
	return prefix + strings.Join(missing, " and ") + "."
}
