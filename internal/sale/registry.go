package sale

import (
	"fmt"
	"sync"
	"time"

	"lojaju/backend/internal/store"
	"lojaju/backend/internal/xid"
)

type entry struct {
	draft    *Draft
	lastUsed time.Time
}

// Registry tracks the drafts open in the UI, keyed by an opaque handle.
// Drafts untouched for longer than maxIdle are dropped; zero keeps them until
// discarded.
type Registry struct {
	mu       sync.Mutex
	products ProductLookup
	maxIdle  time.Duration
	now      func() time.Time
	drafts   map[string]*entry
}

func NewRegistry(products ProductLookup, maxIdle time.Duration) *Registry {
	return &Registry{
		products: products,
		maxIdle:  maxIdle,
		now:      time.Now,
		drafts:   map[string]*entry{},
	}
}

func (r *Registry) Open() *Draft {
	draft := NewDraft(xid.New("draft"), r.products)
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.pruneLocked(now)
	r.drafts[draft.ID()] = &entry{draft: draft, lastUsed: now}
	return draft
}

func (r *Registry) Get(id string) (*Draft, error) {
	if !xid.Valid("draft", id) {
		return nil, fmt.Errorf("%w: draft %q", store.ErrNotFound, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.drafts[id]
	now := r.now()
	if ok && r.expired(e, now) {
		delete(r.drafts, id)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("%w: draft %s", store.ErrNotFound, id)
	}
	e.lastUsed = now
	return e.draft, nil
}

func (r *Registry) Discard(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[id]; !ok {
		return fmt.Errorf("%w: draft %s", store.ErrNotFound, id)
	}
	delete(r.drafts, id)
	return nil
}

func (r *Registry) expired(e *entry, now time.Time) bool {
	return r.maxIdle > 0 && now.Sub(e.lastUsed) > r.maxIdle
}

func (r *Registry) pruneLocked(now time.Time) {
	for id, e := range r.drafts {
		if r.expired(e, now) {
			delete(r.drafts, id)
		}
	}
}
