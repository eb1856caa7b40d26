package mux

import (
	"sync"

	"github.com/google/uuid"
	"github.com/omochice/endpoint-mux/pkg/protocol"
	"github.com/samber/lo"
)

// Handler is invoked with every envelope routed to it.
type Handler func(env protocol.Envelope)

// ChatTitleKey identifies one chat-title subscription. Several subscribers
// may watch the same chat as long as their tags differ.
type ChatTitleKey struct {
	Tag    string
	ChatID int64
}

// NewSubscriberTag returns a unique tag for a ChatTitleKey.
func NewSubscriberTag() string {
	return uuid.NewString()
}

// registry maps keys to a single handler, last writer wins.
type registry[K comparable] struct {
	mu       sync.RWMutex
	handlers map[K]Handler
}

func (r *registry[K]) register(key K, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[K]Handler)
	}
	r.handlers[key] = h
}

func (r *registry[K]) unregister(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, key)
}

func (r *registry[K]) get(key K) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key]
	return h, ok
}

// match returns a snapshot of the handlers whose key satisfies pred.
func (r *registry[K]) match(pred func(K) bool) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(lo.PickBy(r.handlers, func(k K, _ Handler) bool { return pred(k) }))
}
