// Package producer declares the narrow write-behind interface every
// orchestrator in this module uses to publish derived state. The
// actual downstream producer-state-table implementation (and the
// key/value bus it rides on) is an external collaborator outside this
// core's scope (spec.md §1) — callers inject whatever implements Table.
package producer

// A Table is a write-behind sink keyed by row key. Set writes (merges)
// the given fields into the row, matching the "producer state table"
// semantics this system's downstream tables actually have: a Set only
// touches the fields it names, it does not replace the whole row.
type Table interface {
	Set(key string, fields map[string]string) error
	Del(key string) error
}
