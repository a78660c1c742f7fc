package dataset

import (
	"context"
	"sync"

	"github.com/quartzdata/quartz/pkg/errors"
)

// Source tags the provenance of a registered dataset.
type Source string

const (
	// SourceDatabase marks datasets extracted from a warehouse backend.
	SourceDatabase Source = "database"
	// SourceFile marks datasets originating from file uploads.
	SourceFile Source = "file"
)

// Registry accepts normalized datasets for later analysis. Each call adds a
// new registration; implementations live outside this layer, the in-memory
// one below serves the CLI and tests.
type Registry interface {
	RegisterDataset(ctx context.Context, ds *Dataset, source Source) error
}

// Registration is one stored dataset plus its provenance tag.
type Registration struct {
	Dataset *Dataset
	Source  Source
}

// MemoryRegistry is a mutex-guarded in-process Registry.
type MemoryRegistry struct {
	mu            sync.Mutex
	registrations []Registration
}

// NewMemoryRegistry creates an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

// RegisterDataset stores the dataset. Nil datasets are rejected.
func (r *MemoryRegistry) RegisterDataset(_ context.Context, ds *Dataset, source Source) error {
	if ds == nil {
		return errors.New(errors.ErrorTypeValidation, "dataset is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations = append(r.registrations, Registration{Dataset: ds, Source: source})
	return nil
}

// Registrations returns a snapshot of everything registered so far.
func (r *MemoryRegistry) Registrations() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Registration, len(r.registrations))
	copy(out, r.registrations)
	return out
}

// Get returns the most recent registration for a dataset name.
func (r *MemoryRegistry) Get(name string) (*Dataset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.registrations) - 1; i >= 0; i-- {
		if r.registrations[i].Dataset.Name == name {
			return r.registrations[i].Dataset, true
		}
	}
	return nil, false
}
