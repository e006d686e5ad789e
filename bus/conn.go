// Package bus implements the line-delimited JSON wire connection that
// carries (key, op, fields) changes between a daemon and the key/value
// bus described by spec.md §6: producer tables are write-behind sinks
// reached over this connection, and consumer buffers are filled by
// reading from it.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
)

// An Op is the kind of change a Change record carries.
type Op string

// Op constants, matching the wire vocabulary reqparser.Op parses.
const (
	OpSet Op = "SET"
	OpDel Op = "DEL"
)

// A Change is a single (table, key, op, fields) record sent or
// received over a Conn.
type Change struct {
	Table  string            `json:"table"`
	Key    string            `json:"key"`
	Op     Op                `json:"op"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NewConn creates a Conn over rwc. If ll is non-nil, every Change sent
// or received is logged through it as a decoded record rather than raw
// bytes — a reader of the log sees table/key/op, not a JSON blob.
func NewConn(rwc io.ReadWriteCloser, ll *log.Logger) *Conn {
	return &Conn{
		c:   rwc,
		enc: json.NewEncoder(rwc),
		dec: json.NewDecoder(rwc),
		ll:  ll,
	}
}

// A Conn is a connection to the key/value bus, carrying one Change
// record per line.
type Conn struct {
	c  io.Closer
	ll *log.Logger

	encMu sync.Mutex
	enc   *json.Encoder

	decMu sync.Mutex
	dec   *json.Decoder
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.c.Close()
}

// Send writes a single Change to the bus.
func (c *Conn) Send(ch Change) error {
	if ch.Key == "" {
		return errors.New("bus: change key must not be empty")
	}
	if ch.Op != OpSet && ch.Op != OpDel {
		return fmt.Errorf("bus: unknown op: %q", ch.Op)
	}

	c.encMu.Lock()
	defer c.encMu.Unlock()

	if err := c.enc.Encode(ch); err != nil {
		return fmt.Errorf("bus: failed to encode change: %v", err)
	}
	if c.ll != nil {
		c.ll.Printf("bus: sent %s %s/%s", ch.Op, ch.Table, ch.Key)
	}
	return nil
}

// Receive reads a single Change from the bus.
func (c *Conn) Receive() (*Change, error) {
	c.decMu.Lock()
	defer c.decMu.Unlock()

	var ch Change
	if err := c.dec.Decode(&ch); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("bus: failed to decode change: %v", err)
	}
	if c.ll != nil {
		c.ll.Printf("bus: received %s %s/%s", ch.Op, ch.Table, ch.Key)
	}
	return &ch, nil
}
