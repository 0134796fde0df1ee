package llm

import (
	"capstone/config"

	"github.com/pkg/errors"
)

// New builds the gateway selected by cfg.LLMProvider.
func New(cfg *config.Config) (Gateway, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return NewGemini(cfg.LLMModel), nil
	case "openai":
		return NewOpenAI(cfg.LLMBaseURL, cfg.LLMModel), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, errors.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
