package workerpool

import "errors"

var (
	// ErrShuttingDown is returned by Submit/AcquireWorker once Shutdown
	// has been called.
	ErrShuttingDown = errors.New("workerpool: pool is shutting down")
	// ErrAcquireTimeout is returned by AcquireWorker when no worker
	// became available within the requested timeout.
	ErrAcquireTimeout = errors.New("workerpool: timed out acquiring a worker")
	// ErrTaskNotFound is returned by GetResult for an unknown TaskID.
	ErrTaskNotFound = errors.New("workerpool: unknown task id")
	// ErrNoFuncRegistered is returned by SubmitRef when ref was never
	// passed to RegisterFunc.
	ErrNoFuncRegistered = errors.New("workerpool: no function registered for ref")
	// ErrProcessCommandRequired is returned by NewPool when Flavor is
	// FlavorProcess but Config.ProcessCommand is nil.
	ErrProcessCommandRequired = errors.New("workerpool: ProcessCommand is required for FlavorProcess")
)
