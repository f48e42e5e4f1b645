package model

import "time"

const (
	ResultQualified    = "Qualified"
	ResultNotQualified = "Not Qualified"
)

const (
	ScorerHeuristic = "heuristic"
	ScorerLLM       = "llm"
	ScorerFallback  = "fallback"
)

// Application is one submitted job application plus its computed score.
// Records are created once and never modified.
type Application struct {
	ID            int64     `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	JobRole       string    `json:"job_role"`
	JobCategory   string    `json:"job_category,omitempty"`
	Experience    int       `json:"experience"`
	Qualification string    `json:"qualification"`
	Country       string    `json:"country,omitempty"`
	State         string    `json:"state,omitempty"`
	District      string    `json:"district,omitempty"`
	Area          string    `json:"area,omitempty"`
	Answers       []string  `json:"answers"`
	Resume        string    `json:"resume,omitempty"`
	Score         int       `json:"score"`
	Result        string    `json:"result"`
	Scorer        string    `json:"scorer"`
}

func (a Application) Qualified() bool {
	return a.Result == ResultQualified
}

type Catalog struct {
	Version        int      `json:"version" mapstructure:"version"`
	Qualifications []string `json:"qualifications" mapstructure:"qualifications"`
	Roles          []Role   `json:"roles" mapstructure:"roles"`
}

type Role struct {
	Name            string   `json:"name" mapstructure:"name"`
	Category        string   `json:"category" mapstructure:"category"`
	Questions       []string `json:"questions" mapstructure:"questions"`
	Keywords        []string `json:"keywords,omitempty" mapstructure:"keywords"`
	MinAnswerLength int      `json:"min_answer_length" mapstructure:"min_answer_length"`
	MinScore        int      `json:"min_score" mapstructure:"min_score"`
}

type Summary struct {
	Total           int            `json:"total"`
	Qualified       int            `json:"qualified"`
	NotQualified    int            `json:"not_qualified"`
	Pass            int            `json:"pass"`
	Fail            int            `json:"fail"`
	PassScore       int            `json:"pass_score"`
	AverageScore    float64        `json:"average_score"`
	ByRole          []Count        `json:"by_role"`
	ByQualification []Count        `json:"by_qualification"`
	ByState         []Count        `json:"by_state"`
	Daily           []Count        `json:"daily"`
	ByScorer        map[string]int `json:"by_scorer"`
}

type Count struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}
