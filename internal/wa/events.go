package wa

import (
	"time"

	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/status"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// EventHandler processes one tenant's whatsmeow events, drives the
// connection state machine, and publishes normalized session events on
// the tenant bus. It does NOT touch the store directly; the ingestion
// engine subscribes to the bus independently.
type EventHandler struct {
	tenantID string
	bus      *bus.Bus
	machine  *status.Machine
	logger   *zap.Logger
}

// NewEventHandler creates an event handler for a tenant.
func NewEventHandler(tenantID string, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		tenantID: tenantID,
		bus:      b,
		machine:  machine,
		logger:   logger,
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("session connected", zap.String("tenant", h.tenantID))
		_ = h.machine.Transition(status.Connected)
	case *events.Disconnected:
		h.logger.Warn("session disconnected", zap.String("tenant", h.tenantID))
		_ = h.machine.Transition(status.Disconnected)
	case *events.LoggedOut:
		h.logger.Warn("session logged out",
			zap.String("tenant", h.tenantID),
			zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.Disconnected)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	parsed := ParseLiveMessage(h.tenantID, evt)
	h.bus.Publish(bus.Event{
		Kind:      bus.KindSessionMessage,
		TenantID:  h.tenantID,
		Timestamp: time.Now(),
		Payload:   parsed,
	})
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var msgs []*ProviderMessage
	for _, conv := range data.GetConversations() {
		rawChat := NormalizeJID(conv.GetID())
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			msgs = append(msgs, &ProviderMessage{
				TenantID:      h.tenantID,
				RawChat:       rawChat,
				RawSender:     NormalizeJID(wmsg.GetKey().GetParticipant()),
				ProviderMsgID: wmsg.GetKey().GetID(),
				SenderName:    wmsg.GetPushName(),
				Body:          extractTextBody(wmsg.GetMessage()),
				MessageType:   detectMessageType(wmsg.GetMessage()),
				FromMe:        wmsg.GetKey().GetFromMe(),
				Timestamp:     int64(wmsg.GetMessageTimestamp()) * 1000,
			})
		}
	}

	if len(msgs) > 0 {
		h.bus.Publish(bus.Event{
			Kind:      bus.KindSessionHistoryBatch,
			TenantID:  h.tenantID,
			Timestamp: time.Now(),
			Payload:   msgs,
		})
	}
}
