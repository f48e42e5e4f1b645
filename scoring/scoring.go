package scoring

import (
	"context"

	"github.com/mbolis/quick-apply/model"
)

type Input struct {
	Role          model.Role
	Experience    int
	Qualification string
	Answers       []string
	ResumeText    string
}

type Score struct {
	Value  int
	Result string
	Scorer string
}

// Scorer rates one application. Implementations always return a usable
// Score; a non-nil error explains why a degraded score was produced.
type Scorer interface {
	Score(ctx context.Context, in Input) (Score, error)
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func resultFor(score int, role model.Role) string {
	if score >= role.MinScore {
		return model.ResultQualified
	}
	return model.ResultNotQualified
}
