package llm

import (
	"context"
	"fmt"

	"github.com/mbolis/quick-apply/config"
	"github.com/mbolis/quick-apply/integration"
)

// Completer sends a single prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
	Close() error
}

// New builds the provider selected in cfg. A missing API key (or project,
// for vertex) yields an unconfigured integration error.
func New(ctx context.Context, cfg config.Config) (Completer, error) {
	switch cfg.LLMProvider {
	case "openai", "groq":
		if cfg.LLMAPIKey == "" {
			return nil, integration.Unconfigured("llm." + cfg.LLMProvider)
		}
		return NewChat(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL), nil
	case "vertex":
		if cfg.GCPProject == "" {
			return nil, integration.Unconfigured("llm.vertex")
		}
		return NewVertex(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.LLMModel)
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
}
