package progress

import (
	"sync"

	"github.com/rotisserie/eris"
)

// RunRegistry tracks in-flight scoring runs. A company may have at most one
// active run; a second attempt is rejected rather than queued.
type RunRegistry struct {
	mu     sync.Mutex
	active map[string]string // companyID -> runID
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{active: make(map[string]string)}
}

// Acquire claims the company for runID. Fails when another run is active.
func (r *RunRegistry) Acquire(companyID, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.active[companyID]; ok {
		return eris.Errorf("progress: scoring run %s already active for company %s", existing, companyID)
	}
	r.active[companyID] = runID
	return nil
}

// Release frees the company. Releasing with a stale runID is a no-op so a
// late cleanup cannot clobber a newer run.
func (r *RunRegistry) Release(companyID, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[companyID] == runID {
		delete(r.active, companyID)
	}
}

// ActiveRun returns the active run id for a company, if any.
func (r *RunRegistry) ActiveRun(companyID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[companyID]
	return id, ok
}
