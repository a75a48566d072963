// Package queue defines the reservation history events exchanged over
// the message broker and the consumer that persists them to the
// append-only history log.
package queue

// Action values recorded in the reservation history.  The names are
// kept from the legacy history file format so existing tooling keeps
// parsing the log.
const (
	ActionReservationCreated   = "RESERVA_CRIADA"
	ActionReservationCancelled = "RESERVA_CANCELADA"
)

// historyQueueName is the broker queue carrying history events.
const historyQueueName = "reservation.history"

// HistoryEvent is the wire payload for one history entry.  Data holds
// the action-specific detail: the full reservation with its notebook
// summaries for a creation, plus the cancelling actor for a
// cancellation.
type HistoryEvent struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}
