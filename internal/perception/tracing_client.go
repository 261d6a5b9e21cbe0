package perception

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TracingClient wraps any LLMClient and logs every call: provider, model,
// prompt and response sizes, latency and error.
type TracingClient struct {
	underlying LLMClient
	provider   string
	model      string
	logger     *zap.Logger

	calls  atomic.Int64
	failed atomic.Int64
}

// NewTracingClient creates a tracing wrapper around an existing LLM client.
func NewTracingClient(underlying LLMClient, provider, model string, logger *zap.Logger) *TracingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TracingClient{
		underlying: underlying,
		provider:   provider,
		model:      model,
		logger:     logger,
	}
}

// Complete implements LLMClient.
func (tc *TracingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return tc.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem implements LLMClient.
func (tc *TracingClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	tc.calls.Add(1)

	resp, err := tc.underlying.CompleteWithSystem(ctx, systemPrompt, userPrompt)

	fields := []zap.Field{
		zap.String("provider", tc.provider),
		zap.String("model", tc.model),
		zap.Int("system_chars", len(systemPrompt)),
		zap.Int("user_chars", len(userPrompt)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		tc.failed.Add(1)
		tc.logger.Warn("llm call failed", append(fields, zap.Error(err))...)
		return "", err
	}
	tc.logger.Debug("llm call", append(fields, zap.Int("response_chars", len(resp)))...)
	return resp, nil
}

// Stats returns the number of calls made and how many of them failed.
func (tc *TracingClient) Stats() (calls, failed int64) {
	return tc.calls.Load(), tc.failed.Load()
}
