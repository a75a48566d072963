// Package service implements the reservation core: the booking
// transaction manager, the cancellation handler and availability
// derivation.  Stores are injected as interfaces so tests can
// substitute in-memory fakes for the MySQL repositories.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for failures that carry no per-id detail.  Handlers
// translate these into HTTP responses.
var (
	// ErrInvalidRequest signals missing or malformed input fields.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidDateRange signals an unparseable timestamp or a window
	// whose end is not strictly after its start.
	ErrInvalidDateRange = errors.New("end must be after start")
	// ErrReservationNotFound signals that no reservation exists with
	// the requested id.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrStorage wraps unexpected persistence failures.  The underlying
	// cause is logged server-side and never exposed to callers.
	ErrStorage = errors.New("storage failure")
)

// NotebookNotFoundError reports which requested notebook ids do not
// resolve to any notebook.
type NotebookNotFoundError struct {
	IDs []uint64
}

func (e *NotebookNotFoundError) Error() string {
	return fmt.Sprintf("notebooks not found: %s", joinIDs(e.IDs))
}

// NotebookUnavailableError reports notebooks that exist but are not in
// the "available" status, split by which state blocks them.
type NotebookUnavailableError struct {
	UnderMaintenance []uint64
	Retired          []uint64
}

// IDs returns every blocked notebook id regardless of state.
func (e *NotebookUnavailableError) IDs() []uint64 {
	out := make([]uint64, 0, len(e.UnderMaintenance)+len(e.Retired))
	out = append(out, e.UnderMaintenance...)
	out = append(out, e.Retired...)
	return out
}

func (e *NotebookUnavailableError) Error() string {
	return fmt.Sprintf("notebooks unavailable: %s", joinIDs(e.IDs()))
}

// SchedulingConflictError reports an overlap between the requested
// window and existing reservations.  ReservationIDs names the
// offending reservations so callers can adjust without blind retry.
type SchedulingConflictError struct {
	NotebookIDs    []uint64
	ReservationIDs []string
}

func (e *SchedulingConflictError) Error() string {
	return fmt.Sprintf("scheduling conflict with reservation(s): %s",
		strings.Join(e.ReservationIDs, ", "))
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
