package bus

import "github.com/switchctl/switchctl/producer"

// Writer is a producer.Table that publishes Set/Del calls as Change
// records on a Conn for a fixed table name, satisfying the
// write-behind contract spec.md §5/§6 assign to producer tables.
type Writer struct {
	conn  *Conn
	table string
}

// NewWriter returns a Writer that publishes to table over conn.
func NewWriter(conn *Conn, table string) *Writer {
	return &Writer{conn: conn, table: table}
}

// Set publishes a SET change for key with fields.
func (w *Writer) Set(key string, fields map[string]string) error {
	return w.conn.Send(Change{Table: w.table, Key: key, Op: OpSet, Fields: fields})
}

// Del publishes a DEL change for key.
func (w *Writer) Del(key string) error {
	return w.conn.Send(Change{Table: w.table, Key: key, Op: OpDel})
}

var _ producer.Table = (*Writer)(nil)
