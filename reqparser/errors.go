package reqparser

import "fmt"

// An InvalidArgumentError indicates malformed input: a bad key, an
// unknown attribute name, a value that doesn't parse, or an attribute
// present on DEL. These are user errors, not schema bugs, and parsing
// stops without partial state.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.Msg
}

func invalidArgf(format string, args ...interface{}) error {
	return &InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// A LogicError indicates a bug in the Schema itself, such as a
// FieldType with no parser implemented. It should never occur for a
// correctly declared Schema.
type LogicError struct {
	Msg string
}

func (e *LogicError) Error() string {
	return e.Msg
}

func logicErrf(format string, args ...interface{}) error {
	return &LogicError{Msg: fmt.Sprintf(format, args...)}
}
