package video

import (
	"log/slog"
	"slices"
	"sync"
)

// Listener observes the lifecycle of one Stream. Each callback runs at most
// once per registration, OnStreamStarted always before OnStreamFinished.
// Callbacks run on a goroutine owned by the stream and must not block for
// long; status details are read from the stream itself.
type Listener interface {
	OnStreamStarted()
	OnStreamFinished()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Started  func()
	Finished func()
}

// OnStreamStarted implements Listener.
func (f ListenerFuncs) OnStreamStarted() {
	if f.Started != nil {
		f.Started()
	}
}

// OnStreamFinished implements Listener.
func (f ListenerFuncs) OnStreamFinished() {
	if f.Finished != nil {
		f.Finished()
	}
}

type lifecycleEvent int

const (
	eventStarted lifecycleEvent = iota
	eventFinished
)

func (e lifecycleEvent) String() string {
	if e == eventStarted {
		return "started"
	}
	return "finished"
}

type registration struct {
	listener Listener
	// next indexes the notifier history; guarded by notifier.mu.
	next int

	// mu orders the removed check in deliver against remove. It is never
	// held while the listener runs.
	mu      sync.Mutex
	removed bool
}

// claim reports whether a callback may start for r.
func (r *registration) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.removed
}

// notifier delivers the stream's history of lifecycle events to every
// registration in order. A late registration is replayed the events it
// missed. At most one drain goroutine runs at a time, so callbacks for a
// stream never overlap.
type notifier struct {
	logger *slog.Logger

	mu       sync.Mutex
	regs     []*registration
	history  []lifecycleEvent
	draining bool
	idle     *sync.Cond
}

func newNotifier(logger *slog.Logger) *notifier {
	n := &notifier{logger: logger}
	n.idle = sync.NewCond(&n.mu)
	return n
}

// emit appends ev to the history. Callers guarantee each event is emitted
// at most once and started before finished.
func (n *notifier) emit(ev lifecycleEvent) {
	n.mu.Lock()
	n.history = append(n.history, ev)
	n.kickLocked()
	n.mu.Unlock()
}

func (n *notifier) add(l Listener) func() {
	r := &registration{listener: l}

	n.mu.Lock()
	n.regs = append(n.regs, r)
	n.kickLocked()
	n.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { n.remove(r) }) }
}

// remove guarantees that no callback for r starts after it returns. It
// never waits for a callback already running, on any goroutine, so a
// listener may remove itself from inside its own callback.
func (n *notifier) remove(r *registration) {
	r.mu.Lock()
	r.removed = true
	r.mu.Unlock()

	n.mu.Lock()
	n.regs = slices.DeleteFunc(n.regs, func(x *registration) bool { return x == r })
	n.mu.Unlock()
}

// wait blocks until every event emitted so far has been delivered to every
// current registration.
func (n *notifier) wait() {
	n.mu.Lock()
	for n.draining {
		n.idle.Wait()
	}
	n.mu.Unlock()
}

func (n *notifier) kickLocked() {
	if n.draining {
		return
	}
	for _, r := range n.regs {
		if r.next < len(n.history) {
			n.draining = true
			go n.drain()
			return
		}
	}
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		var pick *registration
		for _, r := range n.regs {
			if r.next < len(n.history) && (pick == nil || r.next < pick.next) {
				pick = r
			}
		}
		if pick == nil {
			n.draining = false
			n.idle.Broadcast()
			n.mu.Unlock()
			return
		}
		ev := n.history[pick.next]
		pick.next++
		n.mu.Unlock()

		n.deliver(pick, ev)
	}
}

func (n *notifier) deliver(r *registration, ev lifecycleEvent) {
	if !r.claim() {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			n.logger.Error("Stream listener panicked", "event", ev.String(), "panic", p)
		}
	}()

	switch ev {
	case eventStarted:
		r.listener.OnStreamStarted()
	case eventFinished:
		r.listener.OnStreamFinished()
	}
}
