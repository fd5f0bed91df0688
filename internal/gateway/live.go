package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/zapcrm/internal/bus"
	"go.uber.org/zap"
)

// liveFrame is the wire envelope on the live channel. The client opens
// with a join frame naming its tenant; after the ack every frame from the
// server is an event.
type liveFrame struct {
	Type                 string          `json:"type"` // join, joined, event, error
	TenantID             string          `json:"tenant_id,omitempty"`
	Kind                 string          `json:"kind,omitempty"`
	ContactID            string          `json:"contact_id,omitempty"`
	AttributionUncertain bool            `json:"attribution_uncertain,omitempty"`
	Timestamp            int64           `json:"ts,omitempty"`
	Payload              json.RawMessage `json:"payload,omitempty"`
	Error                string          `json:"error,omitempty"`
}

const (
	joinTimeout   = 10 * time.Second
	writeTimeout  = 10 * time.Second
	liveBufferLen = 256
)

// handleLive upgrades to WebSocket and streams one tenant's events. No
// event is delivered before a valid join: the handshake is what scopes
// the subscription, so a client can never observe another tenant's
// traffic by racing the connect.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 20)

	tenantID, err := s.liveJoin(conn)
	if err != nil {
		s.logger.Warn("live join failed", zap.Error(err))
		return
	}

	ch, unsub := s.bus.Subscribe(tenantID, "", liveBufferLen)
	defer unsub()

	s.logger.Info("live client joined", zap.String("tenant", tenantID))

	// Reader goroutine only watches for close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt := <-ch:
			frame, err := eventFrame(evt)
			if err != nil {
				s.logger.Error("encode event failed", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// liveJoin reads and validates the mandatory join frame.
func (s *Server) liveJoin(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(joinTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var frame liveFrame
	if err := conn.ReadJSON(&frame); err != nil {
		return "", err
	}
	if frame.Type != "join" {
		_ = conn.WriteJSON(liveFrame{Type: "error", Error: "expected join frame"})
		return "", errJoinExpected
	}
	if !s.knownTenant(frame.TenantID) {
		_ = conn.WriteJSON(liveFrame{Type: "error", Error: "unknown tenant"})
		return "", errUnknownTenant
	}
	if err := conn.WriteJSON(liveFrame{Type: "joined", TenantID: frame.TenantID}); err != nil {
		return "", err
	}
	return frame.TenantID, nil
}

var (
	errJoinExpected  = &protocolError{"expected join frame"}
	errUnknownTenant = &protocolError{"unknown tenant"}
)

type protocolError struct{ msg string }

func (e *protocolError) Error() string { return e.msg }

func eventFrame(evt bus.Event) (liveFrame, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return liveFrame{}, err
	}
	return liveFrame{
		Type:                 "event",
		TenantID:             evt.TenantID,
		Kind:                 evt.Kind,
		ContactID:            evt.ContactID,
		AttributionUncertain: evt.AttributionUncertain,
		Timestamp:            evt.Timestamp.UnixMilli(),
		Payload:              payload,
	}, nil
}
