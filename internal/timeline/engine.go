package timeline

import (
	"sort"
	"sync"

	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/store"
)

// Entry is one message as a client renders it. AttributionUncertain marks
// entries that were attached to a conversation by fallback rather than by
// an explicit contact id.
type Entry struct {
	ID                   int64
	ContactID            string
	Direction            store.Direction
	Author               store.Author
	Body                 string
	CreatedAt            int64
	AttributionUncertain bool
}

// Engine reconciles a client's view of one tenant's conversations from
// two sources: history backfill (authoritative snapshots from the store)
// and live events (at-most-once, possibly overlapping with backfill,
// possibly out of order). Store ids are the dedup key; ordering is by
// (created_at, id) so replays and races always converge to the same
// sequence.
type Engine struct {
	mu       sync.RWMutex
	tenantID string
	active   string
	convs    map[string]*conversation
	unread   map[string]int
	noHist   map[string]bool
	// Events that arrived without a contact id while no conversation was
	// active. Held, never discarded; flushed into the next selection.
	pending []Entry
}

type conversation struct {
	seen    map[int64]bool
	entries []Entry
}

// NewEngine creates a reconciliation engine for one tenant's client.
func NewEngine(tenantID string) *Engine {
	return &Engine{
		tenantID: tenantID,
		convs:    make(map[string]*conversation),
		unread:   make(map[string]int),
		noHist:   make(map[string]bool),
	}
}

// TenantID returns the tenant this engine reconciles for.
func (e *Engine) TenantID() string {
	return e.tenantID
}

func (e *Engine) conv(contactID string) *conversation {
	c, ok := e.convs[contactID]
	if !ok {
		c = &conversation{seen: make(map[int64]bool)}
		e.convs[contactID] = c
	}
	return c
}

// insert places an entry at its ordered position, ignoring ids already
// present. Returns whether the entry was new.
func (c *conversation) insert(entry Entry) bool {
	if entry.ID == 0 || c.seen[entry.ID] {
		return false
	}
	c.seen[entry.ID] = true
	i := sort.Search(len(c.entries), func(i int) bool {
		if c.entries[i].CreatedAt != entry.CreatedAt {
			return c.entries[i].CreatedAt > entry.CreatedAt
		}
		return c.entries[i].ID > entry.ID
	})
	c.entries = append(c.entries, Entry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = entry
	return true
}

// ApplyHistory merges a history backfill page into a conversation.
// Overlap with live events already applied is harmless. A successful
// backfill clears any history-unavailable flag.
func (e *Engine) ApplyHistory(contactID string, msgs []store.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.conv(contactID)
	for _, m := range msgs {
		c.insert(Entry{
			ID:        m.ID,
			ContactID: contactID,
			Direction: m.Direction,
			Author:    m.Author,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		})
	}
	delete(e.noHist, contactID)
}

// SetHistoryUnavailable marks a conversation whose backfill failed. Live
// events keep applying; the client renders the gap instead of guessing.
func (e *Engine) SetHistoryUnavailable(contactID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.noHist[contactID] = true
}

// HistoryUnavailable reports whether the last backfill for a conversation
// failed without a later success.
func (e *Engine) HistoryUnavailable(contactID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.noHist[contactID]
}

// ApplyEvent merges one live message event. Events without a contact id
// fall back to the active conversation and are flagged uncertain; with no
// active conversation they are held until a conversation is selected,
// never dropped. Returns the contact the event was attributed to, or ""
// while the event is held.
func (e *Engine) ApplyEvent(evt bus.Event) string {
	msg, ok := evt.Payload.(*store.Message)
	if !ok {
		return ""
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	contactID := evt.ContactID
	if contactID == "" {
		contactID = msg.ContactID
	}
	uncertain := evt.AttributionUncertain
	if contactID == "" {
		if e.active == "" {
			e.pending = append(e.pending, Entry{
				ID:                   msg.ID,
				Direction:            msg.Direction,
				Author:               msg.Author,
				Body:                 msg.Body,
				CreatedAt:            msg.CreatedAt,
				AttributionUncertain: true,
			})
			return ""
		}
		contactID = e.active
		uncertain = true
	}

	created := e.conv(contactID).insert(Entry{
		ID:                   msg.ID,
		ContactID:            contactID,
		Direction:            msg.Direction,
		Author:               msg.Author,
		Body:                 msg.Body,
		CreatedAt:            msg.CreatedAt,
		AttributionUncertain: uncertain,
	})
	if created && msg.Direction == store.Inbound && contactID != e.active {
		e.unread[contactID]++
	}
	return contactID
}

// Entries returns a copy of a conversation's ordered entries.
func (e *Engine) Entries(contactID string) []Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.convs[contactID]
	if !ok {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Select makes a conversation active and clears its unread counter. Held
// unattributed events flush into the newly active conversation, still
// flagged uncertain; duplicate ids already backfilled are ignored.
func (e *Engine) Select(contactID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = contactID
	delete(e.unread, contactID)
	if len(e.pending) > 0 && contactID != "" {
		c := e.conv(contactID)
		for _, entry := range e.pending {
			entry.ContactID = contactID
			c.insert(entry)
		}
		e.pending = nil
	}
}

// Active returns the currently selected conversation, or "".
func (e *Engine) Active() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// Unread returns the client-side unread count for a conversation.
func (e *Engine) Unread(contactID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.unread[contactID]
}
