package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/matheus3301/zapcrm/internal/identity"
	"github.com/matheus3301/zapcrm/internal/store"
	"github.com/matheus3301/zapcrm/internal/wa"
	"go.uber.org/zap"
)

type messageJSON struct {
	ID            int64  `json:"id"`
	TenantID      string `json:"tenant_id"`
	ContactID     string `json:"contact_id"`
	ProviderMsgID string `json:"provider_msg_id"`
	Direction     string `json:"direction"`
	Author        string `json:"author"`
	Body          string `json:"body"`
	DeliveryState string `json:"delivery_state"`
	CreatedAt     int64  `json:"created_at"`
}

func toMessageJSON(m store.Message) messageJSON {
	return messageJSON{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ContactID:     m.ContactID,
		ProviderMsgID: m.ProviderMsgID,
		Direction:     string(m.Direction),
		Author:        string(m.Author),
		Body:          m.Body,
		DeliveryState: m.DeliveryState,
		CreatedAt:     m.CreatedAt,
	}
}

type contactJSON struct {
	TenantID           string `json:"tenant_id"`
	ContactID          string `json:"contact_id"`
	Name               string `json:"name"`
	Unresolved         bool   `json:"unresolved"`
	Stage              string `json:"stage"`
	UnreadCount        int    `json:"unread_count"`
	LastMessageAt      int64  `json:"last_message_at"`
	LastMessagePreview string `json:"last_message_preview"`
}

func toContactJSON(c store.Contact) contactJSON {
	return contactJSON{
		TenantID:           c.TenantID,
		ContactID:          c.ContactID,
		Name:               c.Name,
		Unresolved:         c.Unresolved,
		Stage:              string(c.Stage),
		UnreadCount:        c.UnreadCount,
		LastMessageAt:      c.LastMessageAt,
		LastMessagePreview: c.LastMessagePreview,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sendRequest struct {
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`
	Body      string `json:"body"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.knownTenant(req.TenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	if req.ContactID == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "contact_id and body are required")
		return
	}

	msg, err := s.sender.Send(r.Context(), req.TenantID, req.ContactID, req.Body, store.AuthorOperator)
	if err != nil {
		switch {
		case errors.Is(err, wa.ErrNotConnected):
			writeError(w, http.StatusConflict, "session not connected")
		case errors.Is(err, wa.ErrRemoteRejected):
			writeError(w, http.StatusBadGateway, "send rejected by provider")
		default:
			s.logger.Error("send failed", zap.Error(err), zap.String("tenant", req.TenantID))
			writeError(w, http.StatusInternalServerError, "send failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, toMessageJSON(*msg))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID := q.Get("tenant_id")
	contactID := q.Get("contact_id")
	if !s.knownTenant(tenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	if contactID == "" {
		writeError(w, http.StatusBadRequest, "contact_id is required")
		return
	}
	sinceID, _ := strconv.ParseInt(q.Get("since_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	msgs, err := s.db.ListMessages(tenantID, contactID, sinceID, limit)
	if err != nil {
		s.logger.Error("history query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}

	out := make([]messageJSON, len(msgs))
	var nextSince int64 = sinceID
	for i, m := range msgs {
		out[i] = toMessageJSON(m)
		if m.ID > nextSince {
			nextSince = m.ID
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":      out,
		"next_since_id": nextSince,
	})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID := q.Get("tenant_id")
	if !s.knownTenant(tenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	contacts, err := s.db.ListContacts(tenantID, limit, offset)
	if err != nil {
		s.logger.Error("contacts query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "contacts query failed")
		return
	}
	out := make([]contactJSON, len(contacts))
	for i, c := range contacts {
		out[i] = toContactJSON(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": out})
}

type contactRef struct {
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`
}

func (s *Server) handleContactRead(w http.ResponseWriter, r *http.Request) {
	var req contactRef
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.knownTenant(req.TenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	if req.ContactID == "" {
		writeError(w, http.StatusBadRequest, "contact_id is required")
		return
	}
	if err := s.db.ResetUnread(req.TenantID, req.ContactID); err != nil {
		writeError(w, http.StatusInternalServerError, "reset unread failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stageRequest struct {
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`
	Stage     string `json:"stage"`
}

func (s *Server) handleContactStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.knownTenant(req.TenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	next := store.Stage(req.Stage)
	if !next.Valid() {
		writeError(w, http.StatusBadRequest, "invalid stage")
		return
	}
	if err := s.db.SetStage(req.TenantID, req.ContactID, next); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	contact, err := s.db.GetContact(req.TenantID, req.ContactID)
	if err != nil || contact == nil {
		writeError(w, http.StatusInternalServerError, "contact lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toContactJSON(*contact))
}

type leadRequest struct {
	TenantID string `json:"tenant_id"`
	Phone    string `json:"phone"`
	Name     string `json:"name"`
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.knownTenant(req.TenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	ident := identity.Normalize(req.Phone)
	if ident.Unresolved {
		writeError(w, http.StatusBadRequest, "phone could not be normalized")
		return
	}
	if err := s.db.EnsureContact(&store.Contact{
		TenantID:  req.TenantID,
		ContactID: ident.ContactID,
		Name:      req.Name,
		Stage:     store.StageNew,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "create lead failed")
		return
	}
	contact, err := s.db.GetContact(req.TenantID, ident.ContactID)
	if err != nil || contact == nil {
		writeError(w, http.StatusInternalServerError, "contact lookup failed")
		return
	}
	writeJSON(w, http.StatusCreated, toContactJSON(*contact))
}

type pauseRequest struct {
	TenantID string `json:"tenant_id"`
	Paused   bool   `json:"paused"`
}

func (s *Server) handleAutomationPause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.knownTenant(req.TenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	if err := s.gate.SetPaused(req.TenantID, req.Paused); err != nil {
		s.logger.Error("set pause failed", zap.Error(err), zap.String("tenant", req.TenantID))
		writeError(w, http.StatusInternalServerError, "set pause failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": req.TenantID,
		"paused":    req.Paused,
	})
}

func (s *Server) handlePauseStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if !s.knownTenant(tenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"paused":    s.gate.IsPaused(tenantID),
	})
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if !s.knownTenant(tenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	snap, err := s.sessions.Snapshot(tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "connection status failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.knownTenant(req.TenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	snap, err := s.sessions.Connect(r.Context(), req.TenantID)
	if err != nil {
		s.logger.Error("connect failed", zap.Error(err), zap.String("tenant", req.TenantID))
		writeError(w, http.StatusBadGateway, "connect failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFailedSends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID := q.Get("tenant_id")
	if !s.knownTenant(tenantID) {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	attempts, err := s.db.ListFailedSends(tenantID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed sends query failed")
		return
	}
	type attemptJSON struct {
		ClientSendID string `json:"client_send_id"`
		ContactID    string `json:"contact_id"`
		Body         string `json:"body"`
		Author       string `json:"author"`
		ErrorMessage string `json:"error_message"`
	}
	out := make([]attemptJSON, len(attempts))
	for i, a := range attempts {
		out[i] = attemptJSON{
			ClientSendID: a.ClientSendID,
			ContactID:    a.ContactID,
			Body:         a.Body,
			Author:       string(a.Author),
			ErrorMessage: a.ErrorMessage,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": out})
}
