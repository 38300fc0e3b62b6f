// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// ReservationsQueue is the durable queue reservation events are routed to.
const ReservationsQueue = "reservation.reconciled"

// Event kinds carried in ReservationEvent.Kind.
const (
	KindReconciled = "reconciled"  // customer saved a new selection
	KindReleased   = "released"    // customer dropped every box
	KindCancelled  = "cancelled"   // shop owner or admin force-cancelled
)

// ReservationEvent is published after a transaction that changed who holds
// which boxes has committed.  It carries enough information for consumers to
// audit or notify without querying the primary database.
type ReservationEvent struct {
	EventID      string             `json:"event_id"`
	Kind         string             `json:"kind"`
	Username     string             `json:"username"`
	Actor        string             `json:"actor,omitempty"` // who triggered a cancellation
	Added        []int64            `json:"added"`
	Removed      []int64            `json:"removed"`
	RemovedItems map[int64][]string `json:"removed_items,omitempty"`
	Skipped      []int64            `json:"skipped,omitempty"`
	Holdings     []int64            `json:"holdings"`
	OccurredAt   string             `json:"occurred_at"`
}
