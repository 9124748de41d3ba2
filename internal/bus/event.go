package bus

import "time"

// Event represents a domain event published on the bus. Kinds are dotted
// names; the prefix before the first dot is the namespace ("sync.skipped",
// "cursor.merged_global").
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
