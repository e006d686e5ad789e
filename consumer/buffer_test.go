package consumer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/switchctl/switchctl/reqparser"
)

func TestBufferLastWriteWins(t *testing.T) {
	b := NewBuffer()
	b.Stage("Ethernet0", reqparser.OpSet, Fields{"speed": "100000"})
	b.Stage("Ethernet0", reqparser.OpSet, Fields{"speed": "25000"})

	var seen []Fields
	b.Drain(func(key string, op reqparser.Op, fields Fields) DrainResult {
		seen = append(seen, fields)
		return Consumed
	})

	if len(seen) != 1 {
		t.Fatalf("expected a single staged change, got %d", len(seen))
	}
	if diff := cmp.Diff(Fields{"speed": "25000"}, seen[0]); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer to be empty after full drain, got %d pending", b.Len())
	}
}

func TestBufferRetainSurvivesDrain(t *testing.T) {
	b := NewBuffer()
	b.Stage("sess0", reqparser.OpSet, Fields{"sample_rate": "1000"})

	calls := 0
	b.Drain(func(key string, op reqparser.Op, fields Fields) DrainResult {
		calls++
		return Retained
	})

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if b.Len() != 1 {
		t.Fatalf("expected retained entry to survive, got %d pending", b.Len())
	}

	// Second drain should see it again.
	b.Drain(func(key string, op reqparser.Op, fields Fields) DrainResult {
		calls++
		return Consumed
	})
	if calls != 2 {
		t.Fatalf("expected 2 calls total, got %d", calls)
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer empty after consuming retained entry, got %d", b.Len())
	}
}

func TestBufferMixedConsumeRetain(t *testing.T) {
	b := NewBuffer()
	b.Stage("a", reqparser.OpSet, Fields{"v": "1"})
	b.Stage("b", reqparser.OpSet, Fields{"v": "2"})
	b.Stage("c", reqparser.OpSet, Fields{"v": "3"})

	b.Drain(func(key string, op reqparser.Op, fields Fields) DrainResult {
		if key == "b" {
			return Retained
		}
		return Consumed
	})

	if b.Len() != 1 {
		t.Fatalf("expected 1 retained entry, got %d", b.Len())
	}

	var remaining []string
	b.Drain(func(key string, op reqparser.Op, fields Fields) DrainResult {
		remaining = append(remaining, key)
		return Consumed
	})

	if diff := cmp.Diff([]string{"b"}, remaining); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBufferDel(t *testing.T) {
	b := NewBuffer()
	b.Stage("Ethernet0", reqparser.OpDel, nil)

	var gotOp reqparser.Op
	b.Drain(func(key string, op reqparser.Op, fields Fields) DrainResult {
		gotOp = op
		return Consumed
	})

	if gotOp != reqparser.OpDel {
		t.Fatalf("op = %v, want %v", gotOp, reqparser.OpDel)
	}
}
