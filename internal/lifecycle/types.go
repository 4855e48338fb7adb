// Package lifecycle drives the load/verify/unload cycle of the single-tenant
// inference server. Only one model can be resident at a time, so the
// controller models the server as one slot moving through explicit states.
package lifecycle

// State is the controller's view of the serving slot.
type State string

const (
	StateUnloaded     State = "UNLOADED"
	StateLoading      State = "LOADING"
	StateVerifying    State = "VERIFYING"
	StateReady        State = "READY"
	StateTesting      State = "TESTING"
	StateUnloading    State = "UNLOADING"
	StateFailedToLoad State = "FAILED_TO_LOAD"
)

// loadFailedError marks a model that could not be loaded or verified. The
// batch runner records it and moves on; it is never fatal to the batch.
type loadFailedError struct {
	modelID string
	reason  string
}

func (e loadFailedError) Error() string {
	return "failed to load " + e.modelID + ": " + e.reason
}

// ErrLoadFailed constructs a load failure for the given model.
func ErrLoadFailed(modelID, reason string) error {
	return loadFailedError{modelID: modelID, reason: reason}
}

// IsLoadFailure reports whether err marks a per-model load/verify failure.
func IsLoadFailure(err error) bool {
	_, ok := err.(loadFailedError)
	return ok
}
