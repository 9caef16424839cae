package extraction

import (
	"context"
	"testing"
	"time"
)

func waitForUpdate(t *testing.T, tr *Tracker, match func(Update) bool) Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-tr.Updates():
			if !ok {
				t.Fatal("updates channel closed")
			}
			if match(u) {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for update; latest=%+v", tr.Latest())
		}
	}
}

func TestTrackerPollsUntilResolvedThenKeepsPolling(t *testing.T) {
	backend := newFakeBackend(t)
	r := newTestResolver(t, backend)
	tr := NewTracker(context.Background(), r, nil)
	defer tr.Close()

	tr.Configure(Options{CallID: "c1", PollInterval: 10 * time.Millisecond, Enabled: true})
	waitForUpdate(t, tr, func(u Update) bool { return u.Phase == PhaseDiscovering && u.Record == nil })

	backend.add(Record{DocumentID: "d1", CallID: "c1", FieldsJSON: map[string]any{"buyer_name": "Jane"}})
	u := waitForUpdate(t, tr, func(u Update) bool { return u.Phase == PhasePolling })
	if u.DocumentID != "d1" {
		t.Fatalf("expected d1, got %s", u.DocumentID)
	}
	if len(u.Fields) != 1 || u.Fields[0].Value != "Jane" {
		t.Fatalf("unexpected fields %+v", u.Fields)
	}

	_, before := backend.counts()
	time.Sleep(50 * time.Millisecond)
	if _, after := backend.counts(); after <= before {
		t.Fatal("expected polling to continue after resolution")
	}
}

func TestTrackerWithoutCallIDNeverFetches(t *testing.T) {
	backend := newFakeBackend(t, Record{DocumentID: "d1", CallID: "c1"})
	r := newTestResolver(t, backend)
	tr := NewTracker(context.Background(), r, nil)
	defer tr.Close()

	tr.Configure(Options{CallID: "", PollInterval: 5 * time.Millisecond, Enabled: true})
	time.Sleep(40 * time.Millisecond)
	if list, get := backend.counts(); list+get != 0 {
		t.Fatalf("expected no requests, got list=%d get=%d", list, get)
	}
}

func TestTrackerDisabledNeverFetches(t *testing.T) {
	backend := newFakeBackend(t, Record{DocumentID: "d1", CallID: "c1"})
	r := newTestResolver(t, backend)
	tr := NewTracker(context.Background(), r, nil)
	defer tr.Close()

	tr.Configure(Options{CallID: "c1", PollInterval: 5 * time.Millisecond, Enabled: false})
	time.Sleep(40 * time.Millisecond)
	if list, get := backend.counts(); list+get != 0 {
		t.Fatalf("expected no requests, got list=%d get=%d", list, get)
	}
}

func TestTrackerCallChangeResetsSession(t *testing.T) {
	backend := newFakeBackend(t,
		Record{DocumentID: "d1", CallID: "c1"},
		Record{DocumentID: "d2", CallID: "c2"},
	)
	r := newTestResolver(t, backend)
	tr := NewTracker(context.Background(), r, nil)
	defer tr.Close()

	tr.Configure(Options{CallID: "c1", PollInterval: 10 * time.Millisecond, Enabled: true})
	waitForUpdate(t, tr, func(u Update) bool { return u.DocumentID == "d1" })

	tr.Configure(Options{CallID: "c2", PollInterval: 10 * time.Millisecond, Enabled: true})
	if latest := tr.Latest(); latest.CallID == "c1" {
		t.Fatalf("latest update must not leak the previous call: %+v", latest)
	}
	u := waitForUpdate(t, tr, func(u Update) bool { return u.CallID == "c2" && u.Record != nil })
	if u.DocumentID != "d2" {
		t.Fatalf("expected d2 for the new call, got %s", u.DocumentID)
	}

	if _, ok := r.Cached(context.Background(), "c1", ""); ok {
		t.Fatal("old call's cache entries must be invalidated")
	}
	if st, _ := r.State(context.Background(), "c1"); st.DocumentID() != "d1" {
		t.Fatalf("old call's resolution is set once and must be kept, got %q", st.DocumentID())
	}
}

func TestTrackerDefaultsPollInterval(t *testing.T) {
	backend := newFakeBackend(t)
	tr := NewTracker(context.Background(), newTestResolver(t, backend), nil)
	defer tr.Close()

	tr.Configure(Options{CallID: "c1", PollInterval: -5})
	if got := tr.Options().PollInterval; got != DefaultPollInterval {
		t.Fatalf("expected default interval, got %s", got)
	}
}

func TestTrackerStopKeepsLatest(t *testing.T) {
	backend := newFakeBackend(t, Record{DocumentID: "d1", CallID: "c1"})
	tr := NewTracker(context.Background(), newTestResolver(t, backend), nil)
	defer tr.Close()

	tr.Configure(Options{CallID: "c1", PollInterval: 10 * time.Millisecond, Enabled: true})
	waitForUpdate(t, tr, func(u Update) bool { return u.Record != nil })
	tr.Stop()

	list, get := backend.counts()
	time.Sleep(40 * time.Millisecond)
	list2, get2 := backend.counts()
	if list2+get2 > list+get+1 {
		t.Fatalf("polling continued after Stop: before=%d after=%d", list+get, list2+get2)
	}
	if tr.Latest().Record == nil {
		t.Fatal("Stop should keep the latest update")
	}
}
