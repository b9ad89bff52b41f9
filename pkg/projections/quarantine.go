package projections

import (
	"encoding/json"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/eventstore"
)

// QuarantineEntry records one event Rebuild could not apply: an
// unrecognized schema version with no upcast path, a schema validation
// failure, or a decode error inside Apply. Quarantined events are never
// dropped — they stay visible so an operator can write the missing
// upcaster or investigate a corrupt payload.
type QuarantineEntry struct {
	Seq       uint64          `json:"seq"`
	Type      eventstore.Kind `json:"type"`
	Reason    string          `json:"reason"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Quarantine is the projections_quarantine table: every event a Rebuild
// pass could not fold into a view, in encounter order.
type Quarantine struct {
	Entries []QuarantineEntry
}

// Add appends an entry for e, copying its payload so later mutation of e
// (e.g. by a failed upcast attempt) can't retroactively change what was
// quarantined.
func (q *Quarantine) Add(e eventstore.Event, reason string) {
	payload := make(json.RawMessage, len(e.Payload))
	copy(payload, e.Payload)
	q.Entries = append(q.Entries, QuarantineEntry{
		Seq:       e.Seq,
		Type:      e.Type,
		Reason:    reason,
		Payload:   payload,
		Timestamp: e.Timestamp,
	})
}

// Empty reports whether no event from the replayed range was quarantined.
func (q *Quarantine) Empty() bool {
	return q == nil || len(q.Entries) == 0
}
