package ingest

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/identity"
	"github.com/matheus3301/zapcrm/internal/store"
	"github.com/matheus3301/zapcrm/internal/wa"
	"go.uber.org/zap"
)

// Engine is the single write path into the message store. Every message,
// regardless of origin (remote contact, operator send, automation reply,
// self-echo, history sync), goes through IngestMessage, so exactly-once
// semantics live in one place.
type Engine struct {
	db      *store.DB
	bus     *bus.Bus
	tenants []string
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewEngine creates an ingestion engine for the configured tenants.
func NewEngine(db *store.DB, b *bus.Bus, tenants []string, logger *zap.Logger) *Engine {
	return &Engine{
		db:      db,
		bus:     b,
		tenants: tenants,
		logger:  logger,
	}
}

// Start subscribes to session events for every tenant. Each tenant gets
// its own subscription and goroutine.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	for _, tenant := range e.tenants {
		ch, unsub := e.bus.Subscribe(tenant, "session.", 256)
		go func() {
			defer unsub()
			for {
				select {
				case evt := <-ch:
					e.handleEvent(evt)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindSessionMessage:
		pm, ok := evt.Payload.(*wa.ProviderMessage)
		if !ok {
			return
		}
		if err := e.IngestProvider(pm); err != nil {
			e.logger.Error("failed to ingest message",
				zap.Error(err),
				zap.String("tenant", pm.TenantID),
				zap.String("provider_msg_id", pm.ProviderMsgID))
		}
	case bus.KindSessionHistoryBatch:
		msgs, ok := evt.Payload.([]*wa.ProviderMessage)
		if !ok {
			return
		}
		created := 0
		for _, pm := range msgs {
			id, fresh, err := e.ingestProvider(pm)
			if err != nil {
				e.logger.Error("failed to ingest history message",
					zap.Error(err),
					zap.String("provider_msg_id", pm.ProviderMsgID))
				continue
			}
			_ = id
			if fresh {
				created++
			}
		}
		if len(msgs) > 0 {
			e.logger.Info("history batch ingested",
				zap.String("tenant", msgs[0].TenantID),
				zap.Int("received", len(msgs)),
				zap.Int("created", created))
		}
	}
}

// IngestProvider normalizes and stores one session event from the provider.
func (e *Engine) IngestProvider(pm *wa.ProviderMessage) error {
	_, _, err := e.ingestProvider(pm)
	return err
}

func (e *Engine) ingestProvider(pm *wa.ProviderMessage) (int64, bool, error) {
	if pm.ProviderMsgID == "" {
		return 0, false, fmt.Errorf("provider message without id")
	}

	ident := identity.Normalize(pm.RawChat)

	direction := store.Inbound
	author := store.AuthorRemote
	deliveryState := "received"
	if pm.FromMe {
		// Either our own send echoed back (dedups against the stored row)
		// or a message sent directly from the phone.
		direction = store.Outbound
		author = store.AuthorOperator
		deliveryState = "sent"
	}

	body := pm.Body
	if body == "" && pm.MessageType != "text" && pm.MessageType != "unknown" {
		body = "[" + pm.MessageType + "]"
	}

	createdAt := pm.Timestamp
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	name := ""
	if !pm.FromMe {
		name = pm.SenderName
	}

	return e.IngestMessage(&store.Message{
		TenantID:      pm.TenantID,
		ContactID:     ident.ContactID,
		ProviderMsgID: pm.ProviderMsgID,
		Direction:     direction,
		Author:        author,
		Body:          body,
		DeliveryState: deliveryState,
		CreatedAt:     createdAt,
	}, name, ident.Unresolved)
}

// IngestMessage appends a message exactly once and publishes the resulting
// store row plus a contact update. A duplicate observation of an already
// stored message returns the existing id with created=false and publishes
// nothing, so every consumer sees each message at most once.
func (e *Engine) IngestMessage(m *store.Message, contactName string, unresolved bool) (int64, bool, error) {
	if err := e.db.EnsureContact(&store.Contact{
		TenantID:   m.TenantID,
		ContactID:  m.ContactID,
		Name:       contactName,
		Unresolved: unresolved,
		Stage:      store.StageNew,
	}); err != nil {
		return 0, false, fmt.Errorf("ensure contact: %w", err)
	}

	id, created, err := e.db.AppendMessage(m)
	if err != nil {
		return 0, false, fmt.Errorf("append message: %w", err)
	}
	m.ID = id
	if !created {
		return id, false, nil
	}

	bumpUnread := m.Direction == store.Inbound
	if err := e.db.TouchContact(m.TenantID, m.ContactID, m.CreatedAt, truncate(m.Body, 100), bumpUnread); err != nil {
		return id, true, fmt.Errorf("touch contact: %w", err)
	}

	// The event carries an explicit ContactID, so attribution is never
	// uncertain here. Irresolution lives on the contact record instead.
	e.bus.Publish(bus.Event{
		Kind:      bus.KindMessage,
		TenantID:  m.TenantID,
		ContactID: m.ContactID,
		Timestamp: time.Now(),
		Payload:   m,
	})

	if contact, err := e.db.GetContact(m.TenantID, m.ContactID); err == nil {
		e.bus.Publish(bus.Event{
			Kind:      bus.KindContactUpdate,
			TenantID:  m.TenantID,
			ContactID: m.ContactID,
			Timestamp: time.Now(),
			Payload:   contact,
		})
	}

	return id, true, nil
}

// truncate trims s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen]
}
