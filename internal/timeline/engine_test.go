package timeline

import (
	"testing"

	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/store"
)

func msgEvent(id int64, contactID, body string, createdAt int64) bus.Event {
	return bus.Event{
		Kind:      bus.KindMessage,
		TenantID:  "acme",
		ContactID: contactID,
		Payload: &store.Message{
			ID:        id,
			TenantID:  "acme",
			ContactID: contactID,
			Direction: store.Inbound,
			Author:    store.AuthorRemote,
			Body:      body,
			CreatedAt: createdAt,
		},
	}
}

func bodies(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Body
	}
	return out
}

func TestApplyEventNoDuplicates(t *testing.T) {
	e := NewEngine("acme")

	evt := msgEvent(1, "c1", "hello", 1000)
	e.ApplyEvent(evt)
	e.ApplyEvent(evt)

	entries := e.Entries("c1")
	if len(entries) != 1 {
		t.Fatalf("got %d entries after duplicate event, want 1", len(entries))
	}
}

func TestHistoryAndLiveOverlapConverges(t *testing.T) {
	e := NewEngine("acme")

	// Live events arrive first.
	e.ApplyEvent(msgEvent(2, "c1", "two", 2000))
	e.ApplyEvent(msgEvent(3, "c1", "three", 3000))

	// Backfill overlaps with both live messages plus an older one.
	e.ApplyHistory("c1", []store.Message{
		{ID: 1, ContactID: "c1", Body: "one", CreatedAt: 1000, Direction: store.Inbound},
		{ID: 2, ContactID: "c1", Body: "two", CreatedAt: 2000, Direction: store.Inbound},
		{ID: 3, ContactID: "c1", Body: "three", CreatedAt: 3000, Direction: store.Inbound},
	})

	entries := e.Entries("c1")
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	got := bodies(entries)
	want := []string{"one", "two", "three"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entries = %v, want %v", got, want)
			break
		}
	}
}

func TestOutOfOrderArrivalSortsByCreatedAtThenID(t *testing.T) {
	e := NewEngine("acme")

	e.ApplyEvent(msgEvent(3, "c1", "three", 3000))
	e.ApplyEvent(msgEvent(1, "c1", "one", 1000))
	e.ApplyEvent(msgEvent(2, "c1", "two", 2000))

	got := bodies(e.Entries("c1"))
	want := []string{"one", "two", "three"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entries = %v, want %v", got, want)
		}
	}
}

func TestEqualTimestampsBreakTiesByID(t *testing.T) {
	e := NewEngine("acme")

	// Same created_at: the store id decides.
	e.ApplyEvent(msgEvent(5, "c1", "second", 1000))
	e.ApplyEvent(msgEvent(4, "c1", "first", 1000))

	got := bodies(e.Entries("c1"))
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("entries = %v, want [first second]", got)
	}
}

func TestArrivalOrderIndependence(t *testing.T) {
	msgs := []bus.Event{
		msgEvent(1, "c1", "a", 1000),
		msgEvent(2, "c1", "b", 1000),
		msgEvent(3, "c1", "c", 2000),
		msgEvent(4, "c1", "d", 1500),
	}

	forward := NewEngine("acme")
	for _, m := range msgs {
		forward.ApplyEvent(m)
	}
	backward := NewEngine("acme")
	for i := len(msgs) - 1; i >= 0; i-- {
		backward.ApplyEvent(msgs[i])
	}

	f := bodies(forward.Entries("c1"))
	b := bodies(backward.Entries("c1"))
	if len(f) != len(b) {
		t.Fatalf("lengths differ: %v vs %v", f, b)
	}
	for i := range f {
		if f[i] != b[i] {
			t.Fatalf("order depends on arrival: %v vs %v", f, b)
		}
	}
}

func TestMissingContactFallsBackToActive(t *testing.T) {
	e := NewEngine("acme")
	e.Select("c1")

	evt := bus.Event{
		Kind:     bus.KindMessage,
		TenantID: "acme",
		Payload: &store.Message{
			ID:        1,
			TenantID:  "acme",
			Direction: store.Inbound,
			Author:    store.AuthorRemote,
			Body:      "orphan",
			CreatedAt: 1000,
		},
	}
	got := e.ApplyEvent(evt)
	if got != "c1" {
		t.Fatalf("attributed to %q, want active conversation c1", got)
	}

	entries := e.Entries("c1")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if !entries[0].AttributionUncertain {
		t.Error("fallback entry should be flagged AttributionUncertain")
	}
}

func TestMissingContactNoActiveHeldUntilSelect(t *testing.T) {
	e := NewEngine("acme")

	evt := bus.Event{
		Kind:     bus.KindMessage,
		TenantID: "acme",
		Payload: &store.Message{
			ID:        1,
			Direction: store.Inbound,
			Body:      "orphan",
			CreatedAt: 1000,
		},
	}
	if got := e.ApplyEvent(evt); got != "" {
		t.Errorf("attributed to %q, want held", got)
	}

	// The event must not be lost: it flushes into the first selection.
	e.Select("c1")
	entries := e.Entries("c1")
	if len(entries) != 1 || entries[0].Body != "orphan" {
		t.Fatalf("held event not flushed into selection: %+v", entries)
	}
	if !entries[0].AttributionUncertain {
		t.Error("flushed entry should be flagged AttributionUncertain")
	}
}

func TestHeldEventDedupsAgainstBackfill(t *testing.T) {
	e := NewEngine("acme")

	e.ApplyEvent(bus.Event{
		Kind:     bus.KindMessage,
		TenantID: "acme",
		Payload: &store.Message{
			ID:        7,
			Direction: store.Inbound,
			Body:      "orphan",
			CreatedAt: 1000,
		},
	})

	// Backfill lands the same store row under its real contact before the
	// viewer selects it; the flush must not duplicate id 7.
	e.ApplyHistory("c1", []store.Message{
		{ID: 7, ContactID: "c1", Direction: store.Inbound, Body: "orphan", CreatedAt: 1000},
	})
	e.Select("c1")

	entries := e.Entries("c1")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].AttributionUncertain {
		t.Error("store copy should win over the held fallback copy")
	}
}

func TestUncertainFlagPropagatesFromEvent(t *testing.T) {
	e := NewEngine("acme")

	evt := msgEvent(1, "grp", "group msg", 1000)
	evt.AttributionUncertain = true
	e.ApplyEvent(evt)

	entries := e.Entries("grp")
	if len(entries) != 1 || !entries[0].AttributionUncertain {
		t.Error("producer's uncertain flag should survive into the entry")
	}
}

func TestUnreadCounting(t *testing.T) {
	e := NewEngine("acme")
	e.Select("c1")

	// Inbound to the active conversation: no unread.
	e.ApplyEvent(msgEvent(1, "c1", "hi", 1000))
	if n := e.Unread("c1"); n != 0 {
		t.Errorf("Unread(active) = %d, want 0", n)
	}

	// Inbound to another conversation: counted.
	e.ApplyEvent(msgEvent(2, "c2", "yo", 2000))
	e.ApplyEvent(msgEvent(3, "c2", "yo again", 3000))
	if n := e.Unread("c2"); n != 2 {
		t.Errorf("Unread(c2) = %d, want 2", n)
	}

	// Duplicate does not count again.
	e.ApplyEvent(msgEvent(3, "c2", "yo again", 3000))
	if n := e.Unread("c2"); n != 2 {
		t.Errorf("Unread(c2) after dup = %d, want 2", n)
	}

	// Selecting clears.
	e.Select("c2")
	if n := e.Unread("c2"); n != 0 {
		t.Errorf("Unread(c2) after select = %d, want 0", n)
	}
}

func TestHistoryUnavailableFlag(t *testing.T) {
	e := NewEngine("acme")

	e.SetHistoryUnavailable("c1")
	if !e.HistoryUnavailable("c1") {
		t.Fatal("flag not set")
	}

	// Live events still apply while backfill is unavailable.
	e.ApplyEvent(msgEvent(1, "c1", "live", 1000))
	if len(e.Entries("c1")) != 1 {
		t.Error("live event not applied while history unavailable")
	}

	// A later successful backfill clears the flag.
	e.ApplyHistory("c1", []store.Message{
		{ID: 2, ContactID: "c1", Body: "old", CreatedAt: 500, Direction: store.Inbound},
	})
	if e.HistoryUnavailable("c1") {
		t.Error("flag should clear after successful backfill")
	}
}

func TestHistoryPagingWithCursor(t *testing.T) {
	e := NewEngine("acme")

	// Two backfill pages, second overlapping the first's tail.
	e.ApplyHistory("c1", []store.Message{
		{ID: 1, ContactID: "c1", Body: "a", CreatedAt: 1000, Direction: store.Inbound},
		{ID: 2, ContactID: "c1", Body: "b", CreatedAt: 2000, Direction: store.Inbound},
	})
	e.ApplyHistory("c1", []store.Message{
		{ID: 2, ContactID: "c1", Body: "b", CreatedAt: 2000, Direction: store.Inbound},
		{ID: 3, ContactID: "c1", Body: "c", CreatedAt: 3000, Direction: store.Inbound},
	})

	got := bodies(e.Entries("c1"))
	want := []string{"a", "b", "c"}
	if len(got) != 3 {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entries = %v, want %v", got, want)
		}
	}
}
