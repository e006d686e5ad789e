// Package consumer implements the buffered, per-source staging area an
// orchestrator drains on each pass: the last write for a key wins, and
// a drain visitor may retain an entry for a later pass when it depends
// on state that hasn't arrived yet.
package consumer

import "github.com/switchctl/switchctl/reqparser"

// Fields is the set of field name/value pairs carried by one staged
// change.
type Fields map[string]string

// A DrainResult tells the Buffer what to do with an entry after a
// drain visitor has looked at it.
type DrainResult int

// DrainResult constants.
const (
	// Consumed removes the entry; it will not be seen again.
	Consumed DrainResult = iota
	// Retained keeps the entry staged for a later Drain call, used
	// when processing depends on state that hasn't arrived yet (e.g.
	// a per-session sFlow change arriving before its port).
	Retained
)

type pendingChange struct {
	op     reqparser.Op
	fields Fields
}

// A Buffer is a per-source staging area keyed by entity key. Between
// drains it holds at most one pending change per key; a Stage call for
// a key already pending overwrites the previous change.
//
// Buffer is not safe for concurrent use: it is meant to be owned by the
// single goroutine running a daemon's event loop (spec.md §5).
type Buffer struct {
	pending map[string]pendingChange
	order   []string
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{pending: make(map[string]pendingChange)}
}

// Stage records the latest change for key, overwriting any prior
// staged change for the same key.
func (b *Buffer) Stage(key string, op reqparser.Op, fields Fields) {
	if _, exists := b.pending[key]; !exists {
		b.order = append(b.order, key)
	}
	b.pending[key] = pendingChange{op: op, fields: fields}
}

// Len reports the number of keys currently staged.
func (b *Buffer) Len() int {
	return len(b.pending)
}

// Drain visits every pending entry, in the order keys were first
// staged since the last time they were fully consumed. Callers must
// not depend on this order across sources, or across keys within a
// single Drain, beyond the ordering guarantee this function documents.
// visit decides whether an entry is Consumed or Retained for a future
// Drain.
func (b *Buffer) Drain(visit func(key string, op reqparser.Op, fields Fields) DrainResult) {
	kept := b.order[:0]
	for _, key := range b.order {
		change, ok := b.pending[key]
		if !ok {
			continue
		}

		if visit(key, change.op, change.fields) == Retained {
			kept = append(kept, key)
			continue
		}

		delete(b.pending, key)
	}
	b.order = kept
}
