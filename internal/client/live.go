package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// LiveEvent is one frame from the daemon's live channel.
type LiveEvent struct {
	Kind                 string
	TenantID             string
	ContactID            string
	AttributionUncertain bool
	Timestamp            int64
	Payload              json.RawMessage
}

type liveFrame struct {
	Type                 string          `json:"type"`
	TenantID             string          `json:"tenant_id,omitempty"`
	Kind                 string          `json:"kind,omitempty"`
	ContactID            string          `json:"contact_id,omitempty"`
	AttributionUncertain bool            `json:"attribution_uncertain,omitempty"`
	Timestamp            int64           `json:"ts,omitempty"`
	Payload              json.RawMessage `json:"payload,omitempty"`
	Error                string          `json:"error,omitempty"`
}

// Live connects to the daemon's live channel, performs the join
// handshake for one tenant, and streams events until the context is
// cancelled or the connection drops. The returned channel closes on
// disconnect; reconnecting and backfilling is the caller's job.
func (c *Client) Live(ctx context.Context, addr, tenantID string) (<-chan LiveEvent, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws://"+addr+"/v1/live", nil)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(liveFrame{Type: "join", TenantID: tenantID}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	var ack liveFrame
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if ack.Type != "joined" {
		_ = conn.Close()
		if ack.Error != "" {
			return nil, fmt.Errorf("join rejected: %s", ack.Error)
		}
		return nil, fmt.Errorf("join rejected: unexpected %q frame", ack.Type)
	}

	out := make(chan LiveEvent, 64)
	go func() {
		defer close(out)
		defer func() { _ = conn.Close() }()
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()
		for {
			var frame liveFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type != "event" {
				continue
			}
			select {
			case out <- LiveEvent{
				Kind:                 frame.Kind,
				TenantID:             frame.TenantID,
				ContactID:            frame.ContactID,
				AttributionUncertain: frame.AttributionUncertain,
				Timestamp:            frame.Timestamp,
				Payload:              frame.Payload,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
