package bus

import "time"

// Event kinds carried on the tenant bus. Kinds with the "session." prefix
// are internal to the daemon (adapter -> ingest); the bare kinds are the
// public events fanned out to dashboard viewers.
const (
	KindSessionMessage      = "session.message"
	KindSessionHistoryBatch = "session.history_batch"
	KindMessage             = "message"
	KindContactUpdate       = "contact_update"
	KindConnection          = "connection"
)

// Event represents a domain event published on a tenant's bus.
// ContactID is optional: events that cannot name their conversation set
// AttributionUncertain instead of being dropped.
type Event struct {
	Kind                 string
	TenantID             string
	ContactID            string
	AttributionUncertain bool
	Timestamp            time.Time
	Payload              any
}
