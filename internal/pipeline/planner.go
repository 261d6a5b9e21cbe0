package pipeline

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"
)

// PlannerNodeName is the planner's name in audit entries.
const PlannerNodeName = "planner"

// PlanRequest is the input handed to a PlanGenerator.
type PlanRequest struct {
	Query       string         `json:"query"`
	Task        Task           `json:"task"`
	Constraints map[string]any `json:"constraints"`
}

// PlanGenerator produces a retrieval plan for a classified query.
type PlanGenerator interface {
	Generate(ctx context.Context, req PlanRequest) (RetrievalPlan, error)
}

// PlanGeneratorFunc adapts a function to PlanGenerator.
type PlanGeneratorFunc func(ctx context.Context, req PlanRequest) (RetrievalPlan, error)

func (f PlanGeneratorFunc) Generate(ctx context.Context, req PlanRequest) (RetrievalPlan, error) {
	return f(ctx, req)
}

// PlannerOptions configure the planner node. The zero value stores plans
// exactly as generated.
type PlannerOptions struct {
	// ValidatePlan runs the plan validator on both the generated plan and
	// the fallback plan before storing it.
	ValidatePlan bool
	Validator    ValidatorOptions
}

// Planner asks the plan generator for a retrieval plan and stores it on the
// state. When generation fails the state gets DefaultFallbackPlan.
type Planner struct {
	generator PlanGenerator
	opts      PlannerOptions
	logger    *zap.Logger
}

// NewPlanner creates a planner node. A nil logger disables diagnostics.
func NewPlanner(generator PlanGenerator, opts PlannerOptions, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{generator: generator, opts: opts, logger: logger}
}

// Name implements Node.
func (p *Planner) Name() string { return PlannerNodeName }

// Run implements Node. It does not check that the router ran; task and
// constraints are whatever the incoming state holds.
func (p *Planner) Run(ctx context.Context, in State) State {
	state := in.Clone()
	started := time.Now()

	req := PlanRequest{
		Query:       state.Query,
		Task:        state.Task,
		Constraints: maps.Clone(state.Constraints),
	}

	plan, err := callDependency(ctx, PlannerNodeName, func(ctx context.Context) (RetrievalPlan, error) {
		if p.generator == nil {
			return RetrievalPlan{}, fmt.Errorf("no plan generator configured")
		}
		return p.generator.Generate(ctx, req)
	})
	if err != nil {
		p.logger.Warn("plan generation failed, using fallback plan",
			zap.String("query", state.Query),
			zap.Error(err))

		fallback := p.finish(DefaultFallbackPlan())
		state.Plan = &fallback
		state.StepLog = append(state.StepLog, failed(PlannerNodeName, started, err))
		return state
	}

	plan = p.finish(plan)
	state.Plan = &plan

	p.logger.Debug("retrieval plan generated",
		zap.Strings("sources", plan.Sources),
		zap.Strings("retrieval_fields", plan.RetrievalFields))

	state.StepLog = append(state.StepLog, succeeded(PlannerNodeName, started, req, plan.Clone()))
	return state
}

func (p *Planner) finish(plan RetrievalPlan) RetrievalPlan {
	if p.opts.ValidatePlan {
		return ValidateWith(plan, p.opts.Validator)
	}
	return plan
}
