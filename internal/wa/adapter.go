package wa

import (
	"context"
	"fmt"

	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/identity"
	"github.com/matheus3301/zapcrm/internal/status"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps one tenant's whatsmeow client. It emits normalized events
// through its EventHandler and accepts outbound send commands; everything
// else about the transport is opaque to the rest of the daemon.
type Adapter struct {
	tenantID  string
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	machine   *status.Machine
	logger    *zap.Logger
}

// NewAdapter creates a session adapter for a tenant, backed by the
// tenant's own session.db.
func NewAdapter(ctx context.Context, tenantID, sessionDBPath string, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("ZapCRM", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", sessionDBPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	a := &Adapter{
		tenantID:  tenantID,
		client:    client,
		container: container,
		bus:       b,
		machine:   machine,
		logger:    logger,
	}
	handler := NewEventHandler(tenantID, b, machine, logger)
	client.AddEventHandler(handler.Handle)
	return a, nil
}

// TenantID returns the owning tenant.
func (a *Adapter) TenantID() string {
	return a.tenantID
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect idempotently establishes or resumes the session and returns the
// current connection state. Without credentials it starts the QR pairing
// flow; the current code is held on the state machine until scanned.
func (a *Adapter) Connect(ctx context.Context) (status.Snapshot, error) {
	if a.client.IsConnected() {
		return a.machine.Current(), nil
	}

	if a.IsLoggedIn() {
		a.logger.Info("connecting session", zap.String("tenant", a.tenantID))
		if err := a.client.Connect(); err != nil {
			return a.machine.Current(), fmt.Errorf("connect: %w", err)
		}
		return a.machine.Current(), nil
	}

	// No credentials: QR pairing. GetQRChannel must precede Connect.
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return a.machine.Current(), fmt.Errorf("get QR channel: %w", err)
	}
	a.logger.Info("starting QR pairing", zap.String("tenant", a.tenantID))
	if err := a.client.Connect(); err != nil {
		return a.machine.Current(), fmt.Errorf("connect for pairing: %w", err)
	}

	go func() {
		for item := range qrChan {
			switch item.Event {
			case "code":
				if err := a.machine.SetQR(item.Code); err != nil {
					a.logger.Warn("QR state", zap.Error(err))
				}
			case "success":
				a.logger.Info("QR pairing succeeded", zap.String("tenant", a.tenantID))
				_ = a.machine.Transition(status.Connected)
				return
			case "timeout":
				a.logger.Warn("QR pairing timed out", zap.String("tenant", a.tenantID))
				_ = a.machine.Transition(status.Disconnected)
				return
			default:
				if item.Error != nil {
					a.logger.Error("QR pairing failed", zap.Error(item.Error))
					_ = a.machine.Transition(status.Disconnected)
					return
				}
			}
		}
	}()

	return a.machine.Current(), nil
}

// Disconnect terminates the session connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting session", zap.String("tenant", a.tenantID))
	a.client.Disconnect()
	_ = a.machine.Transition(status.Disconnected)
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// SendText sends a text message to the given contact. Returns the
// provider message id; the same id later arrives on the self-echo event,
// which is what collapses the two observations into one stored message.
func (a *Adapter) SendText(ctx context.Context, contactID, body string) (string, error) {
	if !a.client.IsConnected() {
		return "", ErrNotConnected
	}
	to, err := types.ParseJID(identity.JID(contactID))
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteRejected, err)
	}
	return resp.ID, nil
}
