package bus_test

import (
	"net"
	"testing"

	"github.com/switchctl/switchctl/bus"
	"github.com/switchctl/switchctl/consumer"
	"github.com/switchctl/switchctl/reqparser"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writer := bus.NewWriter(bus.NewConn(client, nil), "ENI")
	buf := consumer.NewBuffer()
	reader := bus.NewReader(bus.NewConn(server, nil), "ENI", buf, nil)

	errc := make(chan error, 1)
	go func() { errc <- writer.Set("ENI:Vnet_1000_AABBCCDDEEFF", map[string]string{"priority": "9996"}) }()

	if err := reader.Pump(); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Set: %v", err)
	}

	var gotOp reqparser.Op
	var gotFields consumer.Fields
	buf.Drain(func(key string, op reqparser.Op, fields consumer.Fields) consumer.DrainResult {
		if key != "ENI:Vnet_1000_AABBCCDDEEFF" {
			t.Fatalf("unexpected staged key: %s", key)
		}
		gotOp, gotFields = op, fields
		return consumer.Consumed
	})

	if gotOp != reqparser.OpSet {
		t.Fatalf("op = %v, want OpSet", gotOp)
	}
	if gotFields["priority"] != "9996" {
		t.Fatalf("fields = %v, want priority=9996", gotFields)
	}
}

func TestReaderSkipsOtherTables(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writer := bus.NewWriter(bus.NewConn(client, nil), "OTHER")
	buf := consumer.NewBuffer()
	reader := bus.NewReader(bus.NewConn(server, nil), "ENI", buf, nil)

	writer2 := bus.NewWriter(bus.NewConn(client, nil), "ENI")

	errc := make(chan error, 2)
	go func() {
		errc <- writer.Set("ignored", map[string]string{})
		errc <- writer2.Set("kept", map[string]string{})
	}()

	if err := reader.Pump(); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Set: %v", err)
	}

	if buf.Len() != 1 {
		t.Fatalf("buffer len = %d, want 1 (the OTHER-table change must be skipped)", buf.Len())
	}
}
