package formflow

import "sync"

// broadcaster is the change-notification half of the library's reactivity
// model. Derived state is pull-based: every getter recomputes from current
// source state on access. A broadcaster only tells subscribers that something
// they may have read has changed; they re-read through the getters.
type broadcaster struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func()
}

// subscribe registers fn and returns a stop function. The stop function is
// idempotent.
func (b *broadcaster) subscribe(fn func()) func() {
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[uint64]func())
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// notify invokes all current subscribers. Callbacks run outside the lock so
// they may subscribe, unsubscribe or notify again.
func (b *broadcaster) notify() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
