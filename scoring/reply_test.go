package scoring

import (
	"testing"

	"github.com/mbolis/quick-apply/integration"
	"github.com/mbolis/quick-apply/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Verdict
	}{
		{"json", `{"score": 72, "verdict": "QUALIFIED"}`, Verdict{72, true, model.ResultQualified}},
		{"fenced json", "```json\n{\"score\": 31.6, \"verdict\": \"NOT QUALIFIED\"}\n```", Verdict{32, true, model.ResultNotQualified}},
		{"json over range", `{"score": 140}`, Verdict{100, true, ""}},
		{"word only", "NOT QUALIFIED", Verdict{0, false, model.ResultNotQualified}},
		{"word lowercase", "The candidate is qualified.", Verdict{0, false, model.ResultQualified}},
		{"digits", "I'd say 85 out of 100", Verdict{85, true, ""}},
		{"broken json falls back", `{"score": 7x} QUALIFIED`, Verdict{7, true, model.ResultQualified}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReply_Nothing(t *testing.T) {
	_, err := ParseReply("I cannot help with that.")
	assert.ErrorIs(t, err, integration.ErrInvalidResponse)
}
