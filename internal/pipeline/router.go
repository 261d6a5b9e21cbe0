package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"
)

// RouterNodeName is the router's name in audit entries.
const RouterNodeName = "router"

// Classification is what a Classifier extracts from a query.
type Classification struct {
	Task        Task        `json:"task"`
	Constraints Constraints `json:"constraints"`
	SafetyFlags []string    `json:"safety_flags"`
}

// Classifier turns a natural-language query into a Classification.
type Classifier interface {
	Classify(ctx context.Context, query string) (Classification, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, query string) (Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, query string) (Classification, error) {
	return f(ctx, query)
}

// Router classifies the query and records task, constraints and safety
// flags on the state. It never fails: when the classifier does, the state
// gets the default task and empty constraints and flags.
type Router struct {
	classifier Classifier
	logger     *zap.Logger
}

// NewRouter creates a router node. A nil logger disables diagnostics.
func NewRouter(classifier Classifier, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{classifier: classifier, logger: logger}
}

// Name implements Node.
func (r *Router) Name() string { return RouterNodeName }

// Run implements Node.
func (r *Router) Run(ctx context.Context, in State) State {
	state := in.Clone()
	query := state.Query
	started := time.Now()

	result, err := callDependency(ctx, RouterNodeName, func(ctx context.Context) (Classification, error) {
		if r.classifier == nil {
			return Classification{}, fmt.Errorf("no classifier configured")
		}
		c, err := r.classifier.Classify(ctx, query)
		if err != nil {
			return Classification{}, err
		}
		if c.Task == "" {
			return Classification{}, fmt.Errorf("%w: empty task", ErrMalformedResult)
		}
		return c, nil
	})
	if err != nil {
		r.logger.Error("router classification failed, using defaults",
			zap.String("query", query),
			zap.Error(err),
			zap.Stack("stacktrace"))

		state.Task = DefaultTask
		state.Constraints = map[string]any{}
		state.SafetyFlags = []string{}
		state.StepLog = append(state.StepLog, failed(RouterNodeName, started, err))
		return state
	}

	flags := append([]string{}, result.SafetyFlags...)
	state.Task = result.Task
	state.Constraints = result.Constraints.AsMap()
	state.SafetyFlags = flags

	r.logger.Debug("query classified",
		zap.String("task", string(result.Task)),
		zap.Int("constraints", len(state.Constraints)),
		zap.Strings("safety_flags", flags))

	output := RouterOutput{
		Task:        result.Task,
		Constraints: maps.Clone(state.Constraints),
		SafetyFlags: slices.Clone(flags),
	}
	state.StepLog = append(state.StepLog, succeeded(RouterNodeName, started, query, output))
	return state
}
