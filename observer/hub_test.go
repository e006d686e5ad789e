package observer

import "testing"

const (
	subjectA SubjectType = iota
	subjectB
)

type recordingObserver struct {
	calls   *[]string
	name    string
	detach  *Hub
	subject SubjectType
}

func (r *recordingObserver) Update(subject SubjectType, payload interface{}) {
	*r.calls = append(*r.calls, r.name)
	if r.detach != nil {
		r.detach.Detach(r.subject, r)
	}
}

func TestHubNotifiesInRegistrationOrder(t *testing.T) {
	h := NewHub()
	var calls []string

	h.Attach(subjectA, &recordingObserver{calls: &calls, name: "first"})
	h.Attach(subjectA, &recordingObserver{calls: &calls, name: "second"})
	h.Attach(subjectB, &recordingObserver{calls: &calls, name: "other-subject"})

	h.Notify(subjectA, nil)

	want := []string{"first", "second"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestHubDetachDuringNotifyUsesSnapshot(t *testing.T) {
	h := NewHub()
	var calls []string

	self := &recordingObserver{calls: &calls, name: "self-detaching", subject: subjectA}
	self.detach = h
	h.Attach(subjectA, self)
	h.Attach(subjectA, &recordingObserver{calls: &calls, name: "second"})

	// First notify: self detaches itself mid-dispatch, but both
	// observers still see this round because of the dispatch-start
	// snapshot.
	h.Notify(subjectA, nil)
	if len(calls) != 2 {
		t.Fatalf("expected both observers notified on first round, got %v", calls)
	}

	calls = nil
	h.Notify(subjectA, nil)
	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("expected only 'second' notified after detach, got %v", calls)
	}
}
