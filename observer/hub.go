// Package observer implements a small synchronous publish/subscribe
// hub used to let one orchestrator react to another's events (for
// example, the ENI orchestrator reacting to neighbor-resolution
// changes) without either one holding a direct reference to the other.
package observer

// A SubjectType identifies the kind of event a hub dispatches.
type SubjectType int

// An Observer receives notifications for subjects it has registered
// for. Update is called synchronously, within the publisher's call
// stack; implementations must be idempotent and must not re-enter the
// Hub from inside Update (spec.md §4.4/§9).
type Observer interface {
	Update(subject SubjectType, payload interface{})
}

// A Hub dispatches notifications to registered Observers in
// registration order.
type Hub struct {
	observers map[SubjectType][]Observer
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{observers: make(map[SubjectType][]Observer)}
}

// Attach registers o to receive notifications for subject.
func (h *Hub) Attach(subject SubjectType, o Observer) {
	h.observers[subject] = append(h.observers[subject], o)
}

// Detach removes o from subject's observer list. It is safe to call
// from within a Notify dispatch for subject: Notify takes a snapshot
// of the observer list before iterating, so a Detach during dispatch
// only affects future notifications.
func (h *Hub) Detach(subject SubjectType, o Observer) {
	list := h.observers[subject]
	for i, existing := range list {
		if existing == o {
			h.observers[subject] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Notify synchronously calls Update on every Observer registered for
// subject, in registration order, passing payload.
func (h *Hub) Notify(subject SubjectType, payload interface{}) {
	// Snapshot so a Detach triggered by one observer's Update doesn't
	// mutate the slice we're currently ranging over.
	snapshot := make([]Observer, len(h.observers[subject]))
	copy(snapshot, h.observers[subject])

	for _, o := range snapshot {
		o.Update(subject, payload)
	}
}
