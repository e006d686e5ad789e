package bus_test

import (
	"io"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/switchctl/switchctl/bus"
)

func TestConnSendRejectsEmptyKey(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := bus.NewConn(client, nil)
	if err := c.Send(bus.Change{Table: "ENI", Op: bus.OpSet}); err == nil {
		t.Fatal("expected an error for an empty key, got none")
	}
}

func TestConnSendRejectsUnknownOp(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := bus.NewConn(client, nil)
	if err := c.Send(bus.Change{Table: "ENI", Key: "k", Op: "BOGUS"}); err == nil {
		t.Fatal("expected an error for an unknown op, got none")
	}
}

func TestConnSendReceiveRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := bus.NewConn(client, nil)
	s := bus.NewConn(server, nil)

	want := bus.Change{
		Table:  "ENI",
		Key:    "ENI:Vnet_1000_AABBCCDDEEFF",
		Op:     bus.OpSet,
		Fields: map[string]string{"priority": "9996"},
	}

	errc := make(chan error, 1)
	go func() { errc <- c.Send(want) }()

	got, err := s.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("unexpected change (-want +got):\n%s", diff)
	}
}

func TestConnReceiveEOF(t *testing.T) {
	c := bus.NewConn(&eofReadWriteCloser{}, nil)

	// Conn must not mask io.EOF with added detail.
	if _, err := c.Receive(); err != io.EOF {
		t.Fatalf("unexpected error: %v", err)
	}
}

type eofReadWriteCloser struct {
	io.ReadWriteCloser
}

func (rwc *eofReadWriteCloser) Read(b []byte) (int, error) { return 0, io.EOF }
func (rwc *eofReadWriteCloser) Close() error                { return nil }
