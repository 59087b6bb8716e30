package bridge

import "errors"

var (
	// ErrRetryBudgetExhausted is returned by Supervisor.Run when every attempt failed.
	ErrRetryBudgetExhausted = errors.New("bridge: retry budget exhausted")

	// ErrChannelClosed indicates the coordination channel stopped without a reason.
	ErrChannelClosed = errors.New("bridge: coordination channel closed")

	// ErrMissingDependency is returned by constructors when a required collaborator is nil.
	ErrMissingDependency = errors.New("bridge: missing dependency")
)
