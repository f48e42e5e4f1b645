package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mbolis/quick-apply/integration"
	"github.com/mbolis/quick-apply/model"
)

var reDigits = regexp.MustCompile(`\d+`)

// Verdict is what could be read out of a model reply. Either part may be
// missing.
type Verdict struct {
	Score    int
	HasScore bool
	Result   string
}

// ParseReply reads a JSON object when the reply contains one, and falls back
// to a verdict keyword and the first run of digits otherwise.
func ParseReply(reply string) (Verdict, error) {
	v := Verdict{}

	if start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}"); start >= 0 && end > start {
		var obj struct {
			Score   *float64 `json:"score"`
			Verdict string   `json:"verdict"`
		}
		if err := json.Unmarshal([]byte(reply[start:end+1]), &obj); err == nil {
			if obj.Score != nil {
				v.Score, v.HasScore = clamp(int(math.Round(*obj.Score))), true
			}
			v.Result = verdictOf(obj.Verdict)
			if v.HasScore || v.Result != "" {
				return v, nil
			}
		}
	}

	v.Result = verdictOf(reply)
	if m := reDigits.FindString(reply); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			n = 100
		}
		v.Score, v.HasScore = clamp(n), true
	}

	if !v.HasScore && v.Result == "" {
		return v, fmt.Errorf("%w: no score or verdict in %q", integration.ErrInvalidResponse, truncate(reply, 80))
	}
	return v, nil
}

func verdictOf(s string) string {
	s = strings.ToUpper(s)
	switch {
	case strings.Contains(s, "NOT QUALIFIED"), strings.Contains(s, "NOT_QUALIFIED"), strings.Contains(s, "UNQUALIFIED"):
		return model.ResultNotQualified
	case strings.Contains(s, "QUALIFIED"):
		return model.ResultQualified
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
