package game

import (
	"fmt"

	"go.uber.org/multierr"
)

// Report collects the failures of an operation that did not stop it: record
// service calls, channel publishes and deliveries. A nil *Report is empty.
type Report struct {
	err error
}

// NewReport creates a report holding the given failures
func NewReport(failures ...error) *Report {
	return &Report{err: multierr.Combine(failures...)}
}

func (r *Report) add(op string, err error) {
	if err == nil {
		return
	}
	r.err = multierr.Append(r.err, fmt.Errorf("%s: %w", op, err))
}

// Err returns every collected failure combined, or nil
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// Errors returns the collected failures individually
func (r *Report) Errors() []error {
	return multierr.Errors(r.Err())
}

// OK returns true if nothing failed
func (r *Report) OK() bool {
	return r.Err() == nil
}
