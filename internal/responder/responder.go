package responder

import (
	"context"
	"strings"

	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/config"
	"github.com/matheus3301/zapcrm/internal/gate"
	"github.com/matheus3301/zapcrm/internal/identity"
	"github.com/matheus3301/zapcrm/internal/store"
	"go.uber.org/zap"
)

// Policy decides whether an inbound message gets an automated reply.
// Returning ok=false means stay silent.
type Policy interface {
	Reply(tenantID, contactID, body string) (reply string, ok bool)
}

// KeywordPolicy replies when the message body contains one of the
// configured keywords. Matching is case-insensitive on whole substrings.
type KeywordPolicy struct {
	rules map[string][]config.AutoReplyRule
}

// NewKeywordPolicy builds a policy from per-tenant auto reply rules.
func NewKeywordPolicy(tenants []config.Tenant) *KeywordPolicy {
	rules := make(map[string][]config.AutoReplyRule, len(tenants))
	for _, t := range tenants {
		if len(t.AutoReply) > 0 {
			rules[t.ID] = t.AutoReply
		}
	}
	return &KeywordPolicy{rules: rules}
}

// Reply returns the first rule whose keyword appears in the body.
func (p *KeywordPolicy) Reply(tenantID, contactID, body string) (string, bool) {
	lower := strings.ToLower(body)
	for _, rule := range p.rules[tenantID] {
		if rule.Keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(rule.Keyword)) {
			return rule.Reply, true
		}
	}
	return "", false
}

// MessageSender is the outbound path used for automated replies.
// *outbox.Sender implements this.
type MessageSender interface {
	Send(ctx context.Context, tenantID, contactID, body string, author store.Author) (*store.Message, error)
}

// Responder watches ingested messages and produces automated replies.
// The pause gate is consulted per message, after ingestion and before the
// reply decision: pausing takes effect for every message ingested after
// the pause, even ones already received on the wire.
type Responder struct {
	bus     *bus.Bus
	gate    *gate.Gate
	policy  Policy
	sender  MessageSender
	tenants []string
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// New creates a responder for the configured tenants.
func New(b *bus.Bus, g *gate.Gate, policy Policy, sender MessageSender, tenants []string, logger *zap.Logger) *Responder {
	return &Responder{
		bus:     b,
		gate:    g,
		policy:  policy,
		sender:  sender,
		tenants: tenants,
		logger:  logger,
	}
}

// Start subscribes to ingested messages for every tenant.
func (r *Responder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for _, tenant := range r.tenants {
		ch, unsub := r.bus.Subscribe(tenant, bus.KindMessage, 64)
		go func() {
			defer unsub()
			for {
				select {
				case evt := <-ch:
					r.handle(ctx, evt)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Stop stops the responder.
func (r *Responder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Responder) handle(ctx context.Context, evt bus.Event) {
	msg, ok := evt.Payload.(*store.Message)
	if !ok {
		return
	}
	// Only remote inbound messages can trigger a reply; our own sends and
	// automation output never feed back into the policy.
	if msg.Direction != store.Inbound || msg.Author != store.AuthorRemote {
		return
	}
	// Unresolved identities (groups, broadcast, garbage addresses) never
	// get automated replies; a group is not a single logical party.
	if identity.Normalize(msg.ContactID).Unresolved {
		return
	}
	if r.gate.IsPaused(msg.TenantID) {
		return
	}

	reply, ok := r.policy.Reply(msg.TenantID, msg.ContactID, msg.Body)
	if !ok {
		return
	}

	if _, err := r.sender.Send(ctx, msg.TenantID, msg.ContactID, reply, store.AuthorAutomation); err != nil {
		r.logger.Error("automated reply failed",
			zap.Error(err),
			zap.String("tenant", msg.TenantID),
			zap.String("contact", msg.ContactID))
		return
	}
	r.logger.Info("automated reply sent",
		zap.String("tenant", msg.TenantID),
		zap.String("contact", msg.ContactID))
}
