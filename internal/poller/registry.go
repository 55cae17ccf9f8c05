package poller

import "sync"

// Registry tracks the merchant ids currently being checked so a slow check
// is not queued a second time by the next sweep.
type Registry struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{inFlight: make(map[string]struct{})}
}

func (r *Registry) TryAcquire(merchantOrderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[merchantOrderID]; busy {
		return false
	}
	r.inFlight[merchantOrderID] = struct{}{}
	return true
}

func (r *Registry) Release(merchantOrderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, merchantOrderID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}
