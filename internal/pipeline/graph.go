package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Node is one step of the pipeline. Run must not fail: a node that cannot
// do its work records the failure in the step log and returns a state
// populated with defaults.
type Node interface {
	Name() string
	Run(ctx context.Context, in State) State
}

// AuditSink receives every audit entry a graph run produces, in order.
type AuditSink interface {
	Record(runID string, entry AuditEntry)
}

// Graph runs its nodes strictly in sequence, each consuming the state the
// previous one returned.
type Graph struct {
	nodes  []Node
	sink   AuditSink
	logger *zap.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithAuditSink mirrors step log entries to sink as nodes complete.
func WithAuditSink(sink AuditSink) GraphOption {
	return func(g *Graph) { g.sink = sink }
}

// WithLogger sets the logger used for per-node diagnostics.
func WithLogger(logger *zap.Logger) GraphOption {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGraph creates a graph running nodes in the given order.
func NewGraph(nodes []Node, opts ...GraphOption) *Graph {
	g := &Graph{
		nodes:  append([]Node(nil), nodes...),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// StageOptions configure the router+planner stage built by NewStage.
type StageOptions struct {
	Planner PlannerOptions
	Logger  *zap.Logger
	Sink    AuditSink
}

// NewStage wires a router followed by a planner.
func NewStage(classifier Classifier, generator PlanGenerator, opts StageOptions) *Graph {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	nodes := []Node{
		NewRouter(classifier, logger.Named(RouterNodeName)),
		NewPlanner(generator, opts.Planner, logger.Named(PlannerNodeName)),
	}
	return NewGraph(nodes, WithLogger(logger), WithAuditSink(opts.Sink))
}

// Nodes returns the node names in execution order.
func (g *Graph) Nodes() []string {
	names := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		names[i] = n.Name()
	}
	return names
}

// Run creates a state for query and runs every node over it.
func (g *Graph) Run(ctx context.Context, runID, query string) State {
	return g.RunState(ctx, runID, NewState(query))
}

// RunState runs every node over a caller-built state. The caller's state
// is not modified.
func (g *Graph) RunState(ctx context.Context, runID string, in State) State {
	state := in.Clone()
	for _, node := range g.nodes {
		before := len(state.StepLog)
		start := time.Now()

		state = node.Run(ctx, state)

		fields := []zap.Field{
			zap.String("run_id", runID),
			zap.String("node", node.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("step_log", len(state.StepLog)),
		}
		if last, ok := state.LastEntry(); ok && len(state.StepLog) > before {
			fields = append(fields, zap.Bool("success", last.Success))
		}
		g.logger.Debug("node finished", fields...)

		if g.sink == nil {
			continue
		}
		for _, entry := range state.StepLog[min(before, len(state.StepLog)):] {
			g.sink.Record(runID, entry)
		}
	}
	return state
}
