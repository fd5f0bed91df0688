package gateway

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/store"
)

func dialLive(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/v1/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) liveFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame liveFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	return frame
}

func join(t *testing.T, conn *websocket.Conn, tenantID string) {
	t.Helper()
	if err := conn.WriteJSON(liveFrame{Type: "join", TenantID: tenantID}); err != nil {
		t.Fatal(err)
	}
	ack := readFrame(t, conn)
	if ack.Type != "joined" || ack.TenantID != tenantID {
		t.Fatalf("ack = %+v, want joined/%s", ack, tenantID)
	}
}

func TestLiveJoinAndReceive(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)
	join(t, conn, "acme")

	env.bus.Publish(bus.Event{
		Kind:      bus.KindMessage,
		TenantID:  "acme",
		ContactID: "c1",
		Timestamp: time.Now(),
		Payload: &store.Message{
			ID: 1, TenantID: "acme", ContactID: "c1",
			Direction: store.Inbound, Author: store.AuthorRemote, Body: "hello",
		},
	})

	frame := readFrame(t, conn)
	if frame.Type != "event" || frame.Kind != bus.KindMessage {
		t.Fatalf("frame = %+v, want message event", frame)
	}
	if frame.ContactID != "c1" {
		t.Errorf("contact_id = %q, want c1", frame.ContactID)
	}
	var msg messageJSON
	if err := json.Unmarshal(frame.Payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Body != "hello" {
		t.Errorf("payload body = %q, want hello", msg.Body)
	}
}

func TestLiveUnknownTenant(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)

	if err := conn.WriteJSON(liveFrame{Type: "join", TenantID: "globex"}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, conn)
	if frame.Type != "error" {
		t.Fatalf("frame = %+v, want error", frame)
	}
}

func TestLiveJoinRequiredFirst(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)

	// First frame must be a join; anything else is a protocol error.
	if err := conn.WriteJSON(liveFrame{Type: "event", Kind: "message"}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, conn)
	if frame.Type != "error" {
		t.Fatalf("frame = %+v, want error for non-join first frame", frame)
	}
}

func TestLiveNoEventsBeforeJoin(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)

	// Published before the join: the subscription does not exist yet, so
	// nothing may be delivered after joining either.
	env.bus.Publish(bus.Event{
		Kind:     bus.KindMessage,
		TenantID: "acme",
		Payload:  &store.Message{ID: 1, TenantID: "acme", Body: "early"},
	})

	join(t, conn, "acme")

	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var frame liveFrame
	if err := conn.ReadJSON(&frame); err == nil {
		t.Fatalf("received pre-join event: %+v", frame)
	}
}

func TestLiveTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)
	join(t, conn, "acme")

	env.bus.Publish(bus.Event{
		Kind:     bus.KindMessage,
		TenantID: "globex",
		Payload:  &store.Message{ID: 1, TenantID: "globex", Body: "secret"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var frame liveFrame
	if err := conn.ReadJSON(&frame); err == nil {
		t.Fatalf("received other tenant's event: %+v", frame)
	}
}
