package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/client"
	"github.com/matheus3301/zapcrm/internal/qr"
	"github.com/matheus3301/zapcrm/internal/status"
	"github.com/matheus3301/zapcrm/internal/store"
	"github.com/matheus3301/zapcrm/internal/timeline"
	"github.com/rivo/tview"
)

// App is the operator console for one tenant: a contact list, the
// selected conversation, and a send box. All message state flows through
// the reconciliation engine; the TUI never orders or dedups on its own.
type App struct {
	app      *tview.Application
	client   *client.Client
	engine   *timeline.Engine
	addr     string
	tenantID string

	contactList *tview.List
	messages    *tview.TextView
	input       *tview.InputField
	statusBar   *tview.TextView

	mu       sync.Mutex
	contacts []client.Contact
}

// NewApp creates the operator console.
func NewApp(c *client.Client, addr, tenantID string) *App {
	a := &App{
		app:      tview.NewApplication(),
		client:   c,
		engine:   timeline.NewEngine(tenantID),
		addr:     addr,
		tenantID: tenantID,
	}

	a.contactList = tview.NewList().ShowSecondaryText(true)
	a.contactList.SetBorder(true).SetTitle(" Leads ")
	a.contactList.SetSelectedFunc(func(i int, _, _ string, _ rune) {
		a.selectIndex(i)
	})

	a.messages = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	a.messages.SetBorder(true).SetTitle(" Conversation ")

	a.input = tview.NewInputField().SetLabel("> ")
	a.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.send(a.input.GetText())
			a.input.SetText("")
		}
	})

	a.statusBar = tview.NewTextView().SetDynamicColors(true)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.messages, 0, 1, false).
		AddItem(a.input, 1, 0, true)
	main := tview.NewFlex().
		AddItem(a.contactList, 32, 0, false).
		AddItem(right, 0, 1, true)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(main, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyTab:
			if a.app.GetFocus() == a.input {
				a.app.SetFocus(a.contactList)
			} else {
				a.app.SetFocus(a.input)
			}
			return nil
		case tcell.KeyCtrlC:
			a.app.Stop()
			return nil
		}
		return event
	})
	return a
}

// Run starts the console and blocks until quit.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.refreshConnection(ctx); err != nil {
		return err
	}
	if err := a.refreshContacts(ctx); err != nil {
		return err
	}

	events, err := a.client.Live(ctx, a.addr, a.tenantID)
	if err != nil {
		return fmt.Errorf("live channel: %w", err)
	}
	go a.consumeLive(ctx, events)

	return a.app.Run()
}

func (a *App) setStatus(format string, args ...any) {
	a.statusBar.SetText(fmt.Sprintf(" [yellow]%s[-] | %s", a.tenantID, fmt.Sprintf(format, args...)))
}

func (a *App) refreshConnection(ctx context.Context) error {
	snap, err := a.client.Connection(ctx, a.tenantID)
	if err != nil {
		return err
	}
	a.renderConnection(snap)
	return nil
}

func (a *App) renderConnection(snap status.Snapshot) {
	switch snap.Status {
	case status.QRPending:
		a.messages.Clear()
		fmt.Fprintf(a.messages, "\n  Scan with WhatsApp on the business phone:\n\n%s\n", qr.Render(snap.QR))
		a.setStatus("pairing pending")
	case status.Connected:
		a.setStatus("connected")
	default:
		a.setStatus("disconnected")
	}
}

func (a *App) refreshContacts(ctx context.Context) error {
	contacts, err := a.client.Contacts(ctx, a.tenantID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.contacts = contacts
	a.mu.Unlock()
	a.renderContacts()
	return nil
}

func (a *App) renderContacts() {
	a.mu.Lock()
	contacts := make([]client.Contact, len(a.contacts))
	copy(contacts, a.contacts)
	a.mu.Unlock()

	cur := a.contactList.GetCurrentItem()
	a.contactList.Clear()
	for _, c := range contacts {
		main := c.Name
		if main == "" {
			main = c.ContactID
		}
		if unread := unreadBadge(c.UnreadCount, a.engine.Unread(c.ContactID)); unread > 0 && c.ContactID != a.engine.Active() {
			main = fmt.Sprintf("%s [red](%d)[-]", main, unread)
		}
		secondary := fmt.Sprintf("%s  %s", c.Stage, c.LastMessagePreview)
		a.contactList.AddItem(main, secondary, 0, nil)
	}
	if cur >= 0 && cur < a.contactList.GetItemCount() {
		a.contactList.SetCurrentItem(cur)
	}
}

// unreadBadge picks the unread count to render for one contact. The
// daemon's count, delivered through contact snapshots, is authoritative;
// the engine's local count only covers the window where a snapshot has
// not arrived yet. Both counters see every inbound message once, so
// summing them would double every badge.
func unreadBadge(serverCount, localCount int) int {
	if serverCount > 0 {
		return serverCount
	}
	return localCount
}

func (a *App) selectIndex(i int) {
	a.mu.Lock()
	if i < 0 || i >= len(a.contacts) {
		a.mu.Unlock()
		return
	}
	contact := a.contacts[i]
	// Clear the snapshot count locally; the daemon resets its copy on the
	// mark-read call below and confirms with a contact update.
	a.contacts[i].UnreadCount = 0
	a.mu.Unlock()

	a.engine.Select(contact.ContactID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.backfill(ctx, contact.ContactID)
	if err := a.client.MarkRead(ctx, a.tenantID, contact.ContactID); err != nil {
		a.setStatus("mark read failed: %v", err)
	}
	a.renderConversation(contact.ContactID)
}

// backfill pages the full history for a conversation into the engine.
func (a *App) backfill(ctx context.Context, contactID string) {
	var sinceID int64
	for {
		page, err := a.client.History(ctx, a.tenantID, contactID, sinceID, 200)
		if err != nil {
			a.engine.SetHistoryUnavailable(contactID)
			a.setStatus("history unavailable: %v", err)
			return
		}
		msgs := make([]store.Message, len(page.Messages))
		for i, m := range page.Messages {
			msgs[i] = toStoreMessage(m)
		}
		a.engine.ApplyHistory(contactID, msgs)
		if len(page.Messages) == 0 || page.NextSinceID == sinceID {
			return
		}
		sinceID = page.NextSinceID
	}
}

func toStoreMessage(m client.Message) store.Message {
	return store.Message{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ContactID:     m.ContactID,
		ProviderMsgID: m.ProviderMsgID,
		Direction:     store.Direction(m.Direction),
		Author:        store.Author(m.Author),
		Body:          m.Body,
		DeliveryState: m.DeliveryState,
		CreatedAt:     m.CreatedAt,
	}
}

func (a *App) renderConversation(contactID string) {
	a.messages.Clear()
	if a.engine.HistoryUnavailable(contactID) {
		fmt.Fprintf(a.messages, "  [red]history unavailable, showing live messages only[-]\n\n")
	}
	for _, e := range a.engine.Entries(contactID) {
		ts := time.UnixMilli(e.CreatedAt).Format("15:04")
		label := "[green]them[-]"
		if e.Direction == store.Outbound {
			label = "[blue]us[-]"
			if e.Author == store.AuthorAutomation {
				label = "[fuchsia]bot[-]"
			}
		}
		mark := ""
		if e.AttributionUncertain {
			mark = " [red]?[-]"
		}
		fmt.Fprintf(a.messages, " %s %s%s %s\n", ts, label, mark, tview.Escape(e.Body))
	}
	a.messages.ScrollToEnd()
}

func (a *App) send(body string) {
	if body == "" || a.engine.Active() == "" {
		return
	}
	contactID := a.engine.Active()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		msg, err := a.client.Send(ctx, a.tenantID, contactID, body)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.setStatus("send failed: %v", err)
				return
			}
			a.engine.ApplyEvent(bus.Event{
				Kind:      bus.KindMessage,
				TenantID:  a.tenantID,
				ContactID: msg.ContactID,
				Payload:   ptr(toStoreMessage(msg)),
			})
			a.renderConversation(contactID)
			a.setStatus("sent")
		})
	}()
}

func ptr(m store.Message) *store.Message { return &m }

func (a *App) consumeLive(ctx context.Context, events <-chan client.LiveEvent) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				a.app.QueueUpdateDraw(func() {
					a.setStatus("live channel lost, restart to reconnect")
				})
				return
			}
			a.handleLive(ctx, evt)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) handleLive(ctx context.Context, evt client.LiveEvent) {
	switch evt.Kind {
	case bus.KindMessage:
		var m client.Message
		if err := json.Unmarshal(evt.Payload, &m); err != nil {
			return
		}
		contactID := a.engine.ApplyEvent(bus.Event{
			Kind:                 evt.Kind,
			TenantID:             evt.TenantID,
			ContactID:            evt.ContactID,
			AttributionUncertain: evt.AttributionUncertain,
			Payload:              ptr(toStoreMessage(m)),
		})
		a.app.QueueUpdateDraw(func() {
			if contactID != "" && contactID == a.engine.Active() {
				a.renderConversation(contactID)
			}
			a.renderContacts()
		})
	case bus.KindContactUpdate:
		var c client.Contact
		if err := json.Unmarshal(evt.Payload, &c); err != nil {
			return
		}
		a.mergeContact(c)
		a.app.QueueUpdateDraw(a.renderContacts)
	case bus.KindConnection:
		var snap status.Snapshot
		if err := json.Unmarshal(evt.Payload, &snap); err != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.renderConnection(snap)
		})
	}
}

// mergeContact upserts one contact into the list, keeping recency order.
func (a *App) mergeContact(c client.Contact) {
	a.mu.Lock()
	defer a.mu.Unlock()
	found := false
	for i := range a.contacts {
		if a.contacts[i].ContactID == c.ContactID {
			a.contacts[i] = c
			found = true
			break
		}
	}
	if !found {
		a.contacts = append(a.contacts, c)
	}
	sort.SliceStable(a.contacts, func(i, j int) bool {
		return a.contacts[i].LastMessageAt > a.contacts[j].LastMessageAt
	})
}
