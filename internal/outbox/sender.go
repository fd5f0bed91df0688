package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/zapcrm/internal/ingest"
	"github.com/matheus3301/zapcrm/internal/store"
	"go.uber.org/zap"
)

// TextSender delivers a text message to a contact over a tenant's session
// and returns the provider message id. *wa.Manager implements this.
type TextSender interface {
	SendText(ctx context.Context, tenantID, contactID, body string) (string, error)
}

// Sender is the outbound path for operator and automation messages. Every
// send is recorded as an attempt before touching the network, then the
// delivered message goes through the shared ingestion path so the later
// self-echo dedups against it.
type Sender struct {
	db       *store.DB
	engine   *ingest.Engine
	provider TextSender
	logger   *zap.Logger
}

// NewSender creates an outbound sender.
func NewSender(db *store.DB, engine *ingest.Engine, provider TextSender, logger *zap.Logger) *Sender {
	return &Sender{
		db:       db,
		engine:   engine,
		provider: provider,
		logger:   logger,
	}
}

// Send delivers a text message and stores it. Returns the stored message
// with its assigned id. The attempt audit row tracks the outcome either way.
func (s *Sender) Send(ctx context.Context, tenantID, contactID, body string, author store.Author) (*store.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("send: empty body")
	}

	clientSendID := uuid.NewString()
	if err := s.db.RecordSendAttempt(clientSendID, tenantID, contactID, body, author); err != nil {
		return nil, fmt.Errorf("record send attempt: %w", err)
	}

	providerID, err := s.provider.SendText(ctx, tenantID, contactID, body)
	if err != nil {
		if markErr := s.db.MarkSendFailed(clientSendID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark send failed", zap.Error(markErr))
		}
		return nil, fmt.Errorf("send text: %w", err)
	}

	msg := &store.Message{
		TenantID:      tenantID,
		ContactID:     contactID,
		ProviderMsgID: providerID,
		Direction:     store.Outbound,
		Author:        author,
		Body:          body,
		DeliveryState: "sent",
		CreatedAt:     time.Now().UnixMilli(),
	}
	id, _, err := s.engine.IngestMessage(msg, "", false)
	if err != nil {
		if markErr := s.db.MarkSendFailed(clientSendID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark send failed", zap.Error(markErr))
		}
		return nil, fmt.Errorf("store sent message: %w", err)
	}

	if err := s.db.MarkSendSent(clientSendID, id); err != nil {
		s.logger.Error("failed to mark send sent", zap.Error(err), zap.String("client_send_id", clientSendID))
	}

	s.logger.Info("message sent",
		zap.String("tenant", tenantID),
		zap.String("contact", contactID),
		zap.String("author", string(author)),
		zap.Int64("message_id", id))
	return msg, nil
}
