// Package worker turns the typed job queue into reliable at-least-once
// execution loops with per-job error isolation and audit logging.
package worker

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/veridex-labs/trustpipe/internal/model"
)

// Result is what a handler returns on success. Summary ends up in the
// audit log; EntityID and URL tie the entry back to what was touched.
type Result struct {
	Summary  string
	EntityID string
	URL      string
}

// Handler executes one claimed job.
type Handler func(ctx context.Context, job *model.Job) (*Result, error)

// Registry maps job types to handlers. It is populated explicitly at
// startup; there is no lazy loading.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a job type. Re-registering a type is a
// programming error.
func (r *Registry) Register(jobType string, h Handler) error {
	if jobType == "" {
		return eris.New("worker: empty job type")
	}
	if h == nil {
		return eris.Errorf("worker: nil handler for %q", jobType)
	}
	if _, exists := r.handlers[jobType]; exists {
		return eris.Errorf("worker: handler already registered for %q", jobType)
	}
	r.handlers[jobType] = h
	return nil
}

// Lookup returns the handler for a job type.
func (r *Registry) Lookup(jobType string) (Handler, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns the registered job types, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
