package formflow

import "sync"

// Disposer collects cleanup callbacks and runs them all on Dispose.
// Callbacks run in reverse registration order, mirroring defer semantics.
// A Disposer can be disposed only once; callbacks added afterwards run
// immediately.
type Disposer struct {
	mu       sync.Mutex
	fns      []func()
	disposed bool
}

// Add registers a cleanup callback.
func (d *Disposer) Add(fn func()) {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		fn()
		return
	}
	d.fns = append(d.fns, fn)
	d.mu.Unlock()
}

// Dispose runs all registered callbacks in reverse order.
func (d *Disposer) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	fns := d.fns
	d.fns = nil
	d.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
