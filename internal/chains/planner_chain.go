package chains

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"querynerd/internal/logging"
	"querynerd/internal/perception"
	"querynerd/internal/pipeline"
)

// PlannerChain asks an LLM for a retrieval plan. It implements
// pipeline.PlanGenerator.
type PlannerChain struct {
	client perception.LLMClient
	prompt *Prompt
	logger *zap.Logger
}

type plannerPromptData struct {
	Query       string
	Task        pipeline.Task
	Constraints string
	Fields      []string
}

// NewPlannerChain creates a planner chain using the embedded planner prompt.
func NewPlannerChain(client perception.LLMClient, logger *zap.Logger) *PlannerChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlannerChain{client: client, prompt: mustLoad("planner"), logger: logger}
}

// Generate implements pipeline.PlanGenerator.
func (c *PlannerChain) Generate(ctx context.Context, req pipeline.PlanRequest) (pipeline.RetrievalPlan, error) {
	constraints := req.Constraints
	if constraints == nil {
		constraints = map[string]any{}
	}
	cj, err := json.Marshal(constraints)
	if err != nil {
		return pipeline.RetrievalPlan{}, fmt.Errorf("encode constraints: %w", err)
	}

	system, user, err := c.prompt.Render(plannerPromptData{
		Query:       req.Query,
		Task:        req.Task,
		Constraints: string(cj),
		Fields:      pipeline.ValidFields(),
	})
	if err != nil {
		return pipeline.RetrievalPlan{}, err
	}

	timer := logging.StartTimer(logging.CategoryAPI, "PlannerChain.Generate")
	reply, err := c.client.CompleteWithSystem(ctx, system, user)
	timer.Stop()
	if err != nil {
		return pipeline.RetrievalPlan{}, fmt.Errorf("planner LLM call: %w", err)
	}
	c.logger.Debug("planner reply", zap.Int("chars", len(reply)))

	raw := perception.ExtractJSON(reply)
	if raw == "" {
		return pipeline.RetrievalPlan{}, ErrNoJSON
	}
	plan, err := pipeline.ParsePlan([]byte(raw))
	if err != nil {
		return pipeline.RetrievalPlan{}, fmt.Errorf("decode plan: %w", err)
	}
	return plan, nil
}
