package llm

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
	"github.com/mbolis/quick-apply/integration"
)

// Vertex wraps the Vertex AI Gemini API.
type Vertex struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewVertex(ctx context.Context, projectID, location, model string) (*Vertex, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, integration.Classify("llm.vertex", fmt.Errorf("create vertex client: %w", err))
	}

	m := client.GenerativeModel(model)
	// low temperature keeps repeated scoring stable
	m.SetTemperature(0.2)
	m.SetTopK(40)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(256)
	m.ResponseMIMEType = "application/json"

	return &Vertex{client: client, model: m}, nil
}

func (*Vertex) Name() string { return "llm.vertex" }

func (v *Vertex) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", integration.Classify(v.Name(), err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", integration.New(v.Name(), integration.KindInvalidResponse, fmt.Errorf("%w: no candidates", integration.ErrInvalidResponse))
	}

	var result string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result += string(text)
		}
	}
	return result, nil
}

func (v *Vertex) Close() error {
	return v.client.Close()
}
