package store

// Direction of a message relative to the tenant's account.
type Direction string

const (
	Inbound  Direction = "INBOUND"
	Outbound Direction = "OUTBOUND"
)

// Author identifies who produced a message.
type Author string

const (
	AuthorRemote     Author = "REMOTE"
	AuthorOperator   Author = "HUMAN_OPERATOR"
	AuthorAutomation Author = "AUTOMATION"
)

// Stage is a lead's position in the sales pipeline.
type Stage string

const (
	StageNew       Stage = "NEW"
	StageContacted Stage = "CONTACTED"
	StageVisit     Stage = "VISIT"
	StageProposal  Stage = "PROPOSAL"
	StageClosed    Stage = "CLOSED"
	StageArchived  Stage = "ARCHIVED"
)

var stageOrder = map[Stage]int{
	StageNew:       0,
	StageContacted: 1,
	StageVisit:     2,
	StageProposal:  3,
	StageClosed:    4,
}

// Valid reports whether s is a known pipeline stage.
func (s Stage) Valid() bool {
	if s == StageArchived {
		return true
	}
	_, ok := stageOrder[s]
	return ok
}

// CanTransition reports whether a lead may move from s to next. Pipeline
// moves are forward-only; ARCHIVED is reachable from any stage and terminal.
func (s Stage) CanTransition(next Stage) bool {
	if !s.Valid() || !next.Valid() || s == next {
		return false
	}
	if s == StageArchived {
		return false
	}
	if next == StageArchived {
		return true
	}
	return stageOrder[next] > stageOrder[s]
}

// Tenant is one store account.
type Tenant struct {
	ID               string
	Name             string
	AutomationPaused bool
}

// Contact is a per-tenant lead keyed by its canonical contact id. The
// JSON tags are the gateway wire format.
type Contact struct {
	TenantID           string `json:"tenant_id"`
	ContactID          string `json:"contact_id"`
	Name               string `json:"name"`
	Unresolved         bool   `json:"unresolved"`
	Stage              Stage  `json:"stage"`
	UnreadCount        int    `json:"unread_count"`
	LastMessageAt      int64  `json:"last_message_at"`
	LastMessagePreview string `json:"last_message_preview"`
}

// Message is one persisted timeline entry. ID is store-assigned, monotonic
// per tenant, and never client-generated. CreatedAt is unix milliseconds.
type Message struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	ContactID     string    `json:"contact_id"`
	ProviderMsgID string    `json:"provider_msg_id"`
	Direction     Direction `json:"direction"`
	Author        Author    `json:"author"`
	Body          string    `json:"body"`
	DeliveryState string    `json:"delivery_state"`
	CreatedAt     int64     `json:"created_at"`
}

// SendAttempt is a durable record of one outbound send.
type SendAttempt struct {
	ID           int64
	ClientSendID string
	TenantID     string
	ContactID    string
	Body         string
	Author       Author
	Status       string // sending, sent, failed
	ErrorMessage string
	MessageID    int64
}
