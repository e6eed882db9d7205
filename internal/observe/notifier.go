// Package observe provides the subscription primitive the stores use instead
// of reactive containers: state lives in plain structs, and interested
// parties register callbacks that fire after every mutation.
package observe

import "sync"

// Notifier fans a change signal out to subscribers. The zero value is ready
// to use.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

// Subscribe registers fn to run after each state change. The returned cancel
// function removes the subscription; calling it more than once is harmless.
func (n *Notifier) Subscribe(fn func()) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = map[int]func(){}
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Notify invokes every subscriber. Callbacks run on the caller's goroutine,
// outside the notifier's lock.
func (n *Notifier) Notify() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
