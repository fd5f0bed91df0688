package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/gate"
	"github.com/matheus3301/zapcrm/internal/status"
	"github.com/matheus3301/zapcrm/internal/store"
	"go.uber.org/zap"
)

// SessionManager is the session side of the gateway. *wa.Manager
// implements this.
type SessionManager interface {
	Connect(ctx context.Context, tenantID string) (status.Snapshot, error)
	Snapshot(tenantID string) (status.Snapshot, error)
}

// MessageSender is the outbound message path. *outbox.Sender implements
// this.
type MessageSender interface {
	Send(ctx context.Context, tenantID, contactID, body string, author store.Author) (*store.Message, error)
}

// Server exposes the daemon's HTTP JSON API and the live WebSocket
// channel. All endpoints are tenant-scoped; unknown tenants are rejected
// before touching any state.
type Server struct {
	addr     string
	db       *store.DB
	bus      *bus.Bus
	gate     *gate.Gate
	sessions SessionManager
	sender   MessageSender
	tenants  map[string]bool
	logger   *zap.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server.
func New(addr string, db *store.DB, b *bus.Bus, g *gate.Gate, sessions SessionManager, sender MessageSender, tenantIDs []string, logger *zap.Logger) *Server {
	tenants := make(map[string]bool, len(tenantIDs))
	for _, id := range tenantIDs {
		tenants[id] = true
	}
	return &Server{
		addr:     addr,
		db:       db,
		bus:      b,
		gate:     g,
		sessions: sessions,
		sender:   sender,
		tenants:  tenants,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the routed HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/send", s.handleSend)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/contacts", s.handleContacts)
	mux.HandleFunc("POST /v1/contacts/read", s.handleContactRead)
	mux.HandleFunc("POST /v1/contacts/stage", s.handleContactStage)
	mux.HandleFunc("POST /v1/leads", s.handleCreateLead)
	mux.HandleFunc("POST /v1/automation/pause", s.handleAutomationPause)
	mux.HandleFunc("GET /v1/automation/pause-status", s.handlePauseStatus)
	mux.HandleFunc("GET /v1/connection", s.handleConnection)
	mux.HandleFunc("POST /v1/connect", s.handleConnect)
	mux.HandleFunc("GET /v1/sends/failed", s.handleFailedSends)
	mux.HandleFunc("GET /v1/live", s.handleLive)
	return mux
}

// Start listens and serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // long-lived websocket writes
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info("gateway listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) knownTenant(tenantID string) bool {
	return s.tenants[tenantID]
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
