package sync

import "sync"

// ViewRegistry maps view identifiers to refresh callbacks and tracks which
// view is active. After a document change only the active view's callback
// runs; inactive views re-render when they become active.
type ViewRegistry struct {
	mu      sync.Mutex
	refresh map[string]func()
	active  string
}

// NewViewRegistry returns an empty registry with no active view.
func NewViewRegistry() *ViewRegistry {
	return &ViewRegistry{refresh: make(map[string]func())}
}

// Register binds a refresh callback to a view identifier, replacing any
// previous binding.
func (r *ViewRegistry) Register(view string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh[view] = fn
}

// SetActive marks view as the one currently displayed and runs its refresh
// callback if one is registered.
func (r *ViewRegistry) SetActive(view string) {
	r.mu.Lock()
	r.active = view
	fn := r.refresh[view]
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Active returns the identifier of the active view, or "" when none is set.
func (r *ViewRegistry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// RefreshActive runs the active view's callback. Views with no registered
// callback and an empty active view are both no-ops.
func (r *ViewRegistry) RefreshActive() {
	r.mu.Lock()
	fn := r.refresh[r.active]
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Notifier fans document change events out to subscribers. Slow consumers
// drop events rather than block the mutation path.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan string
	next int
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan string)}
}

// Subscribe registers a consumer. The returned cancel function releases the
// subscription and is safe to call more than once.
func (n *Notifier) Subscribe() (<-chan string, func()) {
	n.mu.Lock()
	id := n.next
	n.next++
	ch := make(chan string, 8)
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
	return ch, cancel
}

// Broadcast delivers event to every subscriber whose buffer has room.
func (n *Notifier) Broadcast(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
