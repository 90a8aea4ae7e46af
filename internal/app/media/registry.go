package media

import (
	"sync"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type bindingEntry struct {
	Call  core.EngineCall
	Flags domain.MediaFlags
	Binds int
	Bound bool
}

// Registry maps call identity to its media binding. It never owns the call.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.CallID]*bindingEntry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.CallID]*bindingEntry),
	}
}

func (r *Registry) Register(id domain.CallID, call core.EngineCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &bindingEntry{Call: call, Flags: call.MediaFlags()}
	log.Info().Str("module", "media.registry").Str("call_id", string(id)).Msg("registered call")
}

func (r *Registry) Unregister(id domain.CallID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	log.Info().Str("module", "media.registry").Str("call_id", string(id)).Msg("unregistered call")
}

// update runs fn on the entry for id under the write lock.
func (r *Registry) update(id domain.CallID, fn func(e *bindingEntry)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	fn(e)
	return true
}

func (r *Registry) Has(id domain.CallID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// BindCount reports how many times surfaces were bound to the call.
func (r *Registry) BindCount(id domain.CallID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.Binds
	}
	return 0
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
