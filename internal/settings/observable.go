package settings

import "sync"

// ChangeSource records who changed a setting.
type ChangeSource int

const (
	// SourceLocal is a change made on the gateway (API, device discovery).
	SourceLocal ChangeSource = iota + 1

	// SourceBackend is a change pushed from the backend.
	SourceBackend
)

// String returns the source name.
func (s ChangeSource) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Listener is called after a setting changed.
type Listener func(source ChangeSource)

// observable delivers change notifications to its listeners and then to its
// parent's listeners. Listeners run on the goroutine that made the change,
// after the section's own lock is released.
type observable struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	order     []int
	parent    *observable
}

// AddListener registers l and returns a function that removes it.
func (o *observable) AddListener(l Listener) (remove func()) {
	o.mu.Lock()
	if o.listeners == nil {
		o.listeners = make(map[int]Listener)
	}
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	o.order = append(o.order, id)
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.listeners, id)
			for i, v := range o.order {
				if v == id {
					o.order = append(o.order[:i], o.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (o *observable) notify(source ChangeSource) {
	o.mu.Lock()
	ls := make([]Listener, 0, len(o.order))
	for _, id := range o.order {
		ls = append(ls, o.listeners[id])
	}
	parent := o.parent
	o.mu.Unlock()

	for _, l := range ls {
		l(source)
	}
	if parent != nil {
		parent.notify(source)
	}
}
