package model

import "time"

// Reservation records a booking of one or more notebooks for a
// contiguous time window by a named responsible party.  The window is
// half-open: StartsAt is included, EndsAt is excluded, so two bookings
// may touch at exactly the boundary without colliding.
//
// Fields:
//  ID          – opaque UUID primary key.  Non-sequential so reservation
//                identifiers cannot be enumerated.
//  Responsible – free-text identifier of the responsible party.
//  StartsAt    – start of the window (inclusive), UTC.
//  EndsAt      – end of the window (exclusive), UTC.  Always strictly
//                after StartsAt.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – timestamp of last update (null until first update).
type Reservation struct {
	ID          string     `json:"id"`          // reservations.id
	Responsible string     `json:"responsible"` // reservations.responsible
	StartsAt    time.Time  `json:"starts_at"`   // reservations.starts_at
	EndsAt      time.Time  `json:"ends_at"`     // reservations.ends_at
	CreatedAt   time.Time  `json:"created_at"`  // reservations.created_at
	UpdatedAt   *time.Time `json:"updated_at"`  // reservations.updated_at (nullable)
}

// ReservationDetail is a reservation enriched with the summaries of the
// notebooks it covers.  It is the shape returned to API callers and
// recorded in audit events.
type ReservationDetail struct {
	Reservation
	Notebooks []NotebookSummary `json:"notebooks"`
}
