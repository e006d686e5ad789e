package bus

import (
	"errors"
	"log"

	"github.com/switchctl/switchctl/consumer"
	"github.com/switchctl/switchctl/reqparser"
)

// Reader pumps Change records for one table off a Conn into a
// consumer.Buffer, translating the wire Op into reqparser.Op. It is
// meant to be run from the single event-loop goroutine alongside
// whatever else that loop selects on (spec.md §5) — Pump stages exactly
// one Change per call and returns; it keeps reading only past records
// it discards (other tables, unknown ops).
type Reader struct {
	conn   *Conn
	table  string
	buffer *consumer.Buffer
	logger *log.Logger
}

// NewReader returns a Reader that stages table's changes from conn
// into buffer.
func NewReader(conn *Conn, table string, buffer *consumer.Buffer, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.Default()
	}
	return &Reader{conn: conn, table: table, buffer: buffer, logger: logger}
}

// Pump reads and stages the next Change addressed to this Reader's
// table, silently skipping records for other tables on the same
// connection and logging and skipping records with an unknown op. It
// returns io.EOF when the connection is closed.
func (r *Reader) Pump() error {
	for {
		ch, err := r.conn.Receive()
		if err != nil {
			return err
		}
		if ch.Table != r.table {
			continue
		}

		op, err := translateOp(ch.Op)
		if err != nil {
			r.logger.Printf("bus: reader %s: %v", r.table, err)
			continue
		}

		r.buffer.Stage(ch.Key, op, consumer.Fields(ch.Fields))
		return nil
	}
}

func translateOp(op Op) (reqparser.Op, error) {
	switch op {
	case OpSet:
		return reqparser.OpSet, nil
	case OpDel:
		return reqparser.OpDel, nil
	default:
		return "", errors.New("unknown change op: " + string(op))
	}
}
