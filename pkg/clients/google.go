package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
)

// Default model names; override through config.
const (
	DefaultReasoningModel = "gemini-3-pro-preview"
	DefaultFastModel      = "gemini-3-flash-preview"
)

// GoogleAi builds a langchaingo Google AI client for the given model.
// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models.
func GoogleAi(ctx context.Context, apiKey, model string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required")
	}
	if model == "" {
		model = DefaultReasoningModel
	}

	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to init Google AI client: %w", err)
	}
	return llm, nil
}
