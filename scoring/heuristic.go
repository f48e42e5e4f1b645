package scoring

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/mbolis/quick-apply/model"
)

// Heuristic scores by text volume, role keywords and experience:
//
//	min(len(text)/200, 30) + 10*keywords + min(experience*2, 20), capped at 100
//
// and qualifies when the answers are longer than the role's minimum and the
// score reaches the role's threshold.
type Heuristic struct{}

func (Heuristic) Score(_ context.Context, in Input) (Score, error) {
	answers := strings.Join(in.Answers, " ")
	text := strings.ToLower(answers + " " + in.ResumeText)

	score := min(utf8.RuneCountInString(text)/200, 30)
	for _, k := range in.Role.Keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			score += 10
		}
	}
	score += min(max(in.Experience, 0)*2, 20)
	score = clamp(score)

	result := resultFor(score, in.Role)
	if in.Role.MinAnswerLength > 0 && answerLength(in.Answers) <= in.Role.MinAnswerLength {
		result = model.ResultNotQualified
	}

	return Score{Value: score, Result: result, Scorer: model.ScorerHeuristic}, nil
}

func answerLength(answers []string) (n int) {
	for _, a := range answers {
		n += utf8.RuneCountInString(strings.TrimSpace(a))
	}
	return
}
