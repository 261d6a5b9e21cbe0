package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// DependencyError is the only failure a node knows about: the external
// classifier or plan generator did not produce a usable result, for
// whatever reason.
type DependencyError struct {
	Node  string
	Cause error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s dependency failed: %v", e.Node, e.Cause)
}

func (e *DependencyError) Unwrap() error { return e.Cause }

// ErrMalformedResult marks a dependency reply that decoded but is unusable.
var ErrMalformedResult = errors.New("malformed result")

// callDependency runs fn once and turns every way it can go wrong, panics
// included, into a *DependencyError.
func callDependency[T any](ctx context.Context, node string, fn func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = &DependencyError{Node: node, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err = fn(ctx)
	if err != nil {
		var zero T
		return zero, &DependencyError{Node: node, Cause: err}
	}
	return result, nil
}
