package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mbolis/quick-apply/integration"
	"github.com/mbolis/quick-apply/llm"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/model"
)

const resumeExcerpt = 4000

type LLMOptions struct {
	Fallback int
	Timeout  time.Duration
	Cache    Cache
	CacheTTL time.Duration
}

// LLM asks a language model for a score and verdict. When no completer is
// configured or the call fails, it returns the fallback score.
type LLM struct {
	completer llm.Completer
	opts      LLMOptions
}

// NewLLM accepts a nil completer; every Score call then yields the fallback.
func NewLLM(c llm.Completer, opts LLMOptions) *LLM {
	if opts.CacheTTL <= 0 {
		opts.Cache = nil
	}
	return &LLM{completer: c, opts: opts}
}

func (s *LLM) Score(ctx context.Context, in Input) (Score, error) {
	if s.completer == nil {
		return s.fallback(in, integration.Unconfigured("llm"))
	}

	prompt := Prompt(in)
	key := cacheKey(s.completer.Name(), prompt)

	if s.opts.Cache != nil {
		reply, ok, err := s.opts.Cache.Get(ctx, key)
		if err != nil {
			log.WithError(err).Warn("scoring.cache.get")
		} else if ok {
			if score, err := s.fromReply(reply, in); err == nil {
				log.Debugf("scoring.cache.hit: %s", key[:12])
				return score, nil
			}
		}
	}

	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	reply, err := s.completer.Complete(callCtx, prompt)
	if err != nil {
		return s.fallback(in, err)
	}

	score, err := s.fromReply(reply, in)
	if err != nil {
		return s.fallback(in, integration.Classify(s.completer.Name(), err))
	}

	if s.opts.Cache != nil {
		if err := s.opts.Cache.Set(ctx, key, reply, s.opts.CacheTTL); err != nil {
			log.WithError(err).Warn("scoring.cache.set")
		}
	}
	return score, nil
}

func (s *LLM) fromReply(reply string, in Input) (Score, error) {
	v, err := ParseReply(reply)
	if err != nil {
		return Score{}, err
	}
	if !v.HasScore {
		v.Score = s.opts.Fallback
	}
	if v.Result == "" {
		v.Result = resultFor(v.Score, in.Role)
	}
	return Score{Value: v.Score, Result: v.Result, Scorer: model.ScorerLLM}, nil
}

func (s *LLM) fallback(in Input, err error) (Score, error) {
	score := clamp(s.opts.Fallback)
	return Score{
		Value:  score,
		Result: resultFor(score, in.Role),
		Scorer: model.ScorerFallback,
	}, err
}

func cacheKey(provider, prompt string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

func Prompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate a job application.\n\n")
	fmt.Fprintf(&b, "Role: %s", in.Role.Name)
	if in.Role.Category != "" {
		fmt.Fprintf(&b, " (%s)", in.Role.Category)
	}
	fmt.Fprintf(&b, "\nExperience: %d years\nQualification: %s\n\n", in.Experience, in.Qualification)

	for i, a := range in.Answers {
		q := fmt.Sprintf("Question %d", i+1)
		if i < len(in.Role.Questions) {
			q = in.Role.Questions[i]
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", q, strings.TrimSpace(a))
	}

	if resume := strings.TrimSpace(in.ResumeText); resume != "" {
		r := []rune(resume)
		if len(r) > resumeExcerpt {
			r = r[:resumeExcerpt]
		}
		fmt.Fprintf(&b, "Resume excerpt:\n%s\n\n", string(r))
	}

	b.WriteString(`Score the candidate from 0 to 100 and decide whether they are QUALIFIED or NOT QUALIFIED.
Reply with a JSON object only: {"score": <0-100>, "verdict": "QUALIFIED" | "NOT QUALIFIED"}`)
	return b.String()
}
