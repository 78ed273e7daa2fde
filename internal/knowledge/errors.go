package knowledge

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no knowledge base is registered under the
	// requested name.
	ErrNotFound = errors.New("knowledge base not found")

	// ErrNotReady indicates the knowledge base exists but is not in
	// the ready state, so it cannot serve searches.
	ErrNotReady = errors.New("knowledge base not ready")

	// ErrNoCollection indicates a load was attempted but no persisted
	// collection exists for the base.
	ErrNoCollection = errors.New("no persisted collection")

	// ErrDisabled indicates the backing data source is disabled.
	ErrDisabled = errors.New("data source disabled")
)

// BatchResult reports the outcome of a bulk initialize or load across
// several knowledge bases. A failure of one base never aborts the
// others.
type BatchResult struct {
	Ready  []string
	Failed map[string]error
}

// Ok reports whether every base in the batch succeeded.
func (r *BatchResult) Ok() bool {
	return len(r.Failed) == 0
}

// Err summarizes the failures as a single error, or nil when all
// bases succeeded.
func (r *BatchResult) Err() error {
	if r.Ok() {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for name, err := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(errs...)
}
