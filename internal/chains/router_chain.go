package chains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"querynerd/internal/logging"
	"querynerd/internal/perception"
	"querynerd/internal/pipeline"
)

// ErrNoJSON is returned when a reply contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in LLM reply")

// RouterChain classifies queries with an LLM. It implements
// pipeline.Classifier.
type RouterChain struct {
	client perception.LLMClient
	prompt *Prompt
	logger *zap.Logger
}

type routerPromptData struct {
	Query string
	Tasks []pipeline.Task
}

// NewRouterChain creates a router chain using the embedded router prompt.
func NewRouterChain(client perception.LLMClient, logger *zap.Logger) *RouterChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterChain{client: client, prompt: mustLoad("router"), logger: logger}
}

// Classify implements pipeline.Classifier.
func (c *RouterChain) Classify(ctx context.Context, query string) (pipeline.Classification, error) {
	system, user, err := c.prompt.Render(routerPromptData{Query: query, Tasks: pipeline.KnownTasks()})
	if err != nil {
		return pipeline.Classification{}, err
	}

	timer := logging.StartTimer(logging.CategoryAPI, "RouterChain.Classify")
	reply, err := c.client.CompleteWithSystem(ctx, system, user)
	timer.Stop()
	if err != nil {
		return pipeline.Classification{}, fmt.Errorf("router LLM call: %w", err)
	}
	c.logger.Debug("router reply", zap.Int("chars", len(reply)))

	return parseClassification(reply)
}

type classificationReply struct {
	Task        string               `json:"task"`
	Constraints pipeline.Constraints `json:"constraints"`
	SafetyFlags []string             `json:"safety_flags"`
}

func parseClassification(reply string) (pipeline.Classification, error) {
	raw := perception.ExtractJSON(reply)
	if raw == "" {
		return pipeline.Classification{}, ErrNoJSON
	}

	var r classificationReply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return pipeline.Classification{}, fmt.Errorf("decode classification: %w", err)
	}

	task, err := pipeline.ParseTask(r.Task)
	if err != nil {
		return pipeline.Classification{}, err
	}

	flags := make([]string, 0, len(r.SafetyFlags))
	for _, f := range r.SafetyFlags {
		if f != "" {
			flags = append(flags, f)
		}
	}

	return pipeline.Classification{
		Task:        task,
		Constraints: r.Constraints,
		SafetyFlags: flags,
	}, nil
}
