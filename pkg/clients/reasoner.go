package clients

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// LLMReasoner implements the engine's Reasoner contract on top of a
// langchaingo model. When the caller supplies a response shape hint the call
// runs in JSON mode with the hint attached as a system instruction.
type LLMReasoner struct {
	llm        llms.Model
	logger     *slog.Logger
	maxRetries int
}

func NewLLMReasoner(llm llms.Model, logger *slog.Logger) *LLMReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReasoner{
		llm:        llm,
		logger:     logger,
		maxRetries: 3,
	}
}

// Reason generates a response for prompt, retrying transient failures with
// linear backoff.
func (r *LLMReasoner) Reason(ctx context.Context, prompt, shapeHint string) (string, error) {
	msgs := make([]llms.MessageContent, 0, 2)
	var opts []llms.CallOption
	if shapeHint != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, "# Response Format\n\n"+shapeHint))
		opts = append(opts, llms.WithJSONMode())
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	var lastErr error
	for i := 0; i < r.maxRetries; i++ {
		if i > 0 {
			r.logger.Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * time.Duration(i)): // Linear backoff
			}
		}

		resp, err := r.llm.GenerateContent(ctx, msgs, opts...)
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}
		return resp.Choices[0].Content, nil
	}

	return "", fmt.Errorf("reasoning failed after %d retries: %w", r.maxRetries, lastErr)
}
