package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/notebook-reservation/internal/model"
	"github.com/iliyamo/notebook-reservation/internal/queue"
)

// NotebookStore is the read surface of the notebook inventory needed by
// the booking core.  The MySQL implementation lives in
// internal/repository; tests use an in-memory fake.
type NotebookStore interface {
	// GetByIDs returns the notebooks matching ids.  Missing ids are
	// simply absent from the result; callers compare lengths.
	GetByIDs(ctx context.Context, ids []uint64) ([]model.Notebook, error)
	// ListByStatus returns all notebooks in the given lifecycle status.
	ListByStatus(ctx context.Context, status string) ([]model.Notebook, error)
}

// ReservationStore persists reservations and their notebook
// associations.  Create is the single serialization point for
// conflicting bookings: implementations must run the existence, status
// and overlap checks and both inserts under one serializable
// transaction scope, returning *NotebookNotFoundError,
// *NotebookUnavailableError or *SchedulingConflictError when a check
// fails.  A check-then-act gap between the conflict query and the
// insert is a correctness bug, not a simplification.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation, notebookIDs []uint64) error
	GetByID(ctx context.Context, id string) (*model.ReservationDetail, error)
	List(ctx context.Context, filter ReservationFilter) ([]model.ReservationDetail, error)
	// Delete removes the reservation and its association rows as one
	// atomic unit.  It returns ErrReservationNotFound when the id is
	// already gone, which a concurrent cancel must tolerate.
	Delete(ctx context.Context, id string) error
	// NotebooksReservedDuring returns the ids of notebooks linked to
	// any reservation overlapping w.
	NotebooksReservedDuring(ctx context.Context, w Window) ([]uint64, error)
}

// AuditRecorder receives reservation history events.  Implementations
// must never fail the calling operation; errors are swallowed and
// logged locally.
type AuditRecorder interface {
	Record(ctx context.Context, action string, data any)
}

// Identity is the verified caller handed over by the authentication
// middleware.  The core treats Role as an opaque gate and performs no
// credential checks of its own.
type Identity struct {
	ID       uint64
	Username string
	Role     string
}

// ReservationFilter narrows reservation listings.  Zero values mean no
// filtering.  Responsible matches as a case-insensitive substring.
type ReservationFilter struct {
	NotebookID  uint64
	Responsible string
}

// CreateReservationInput carries the raw booking request.  Timestamps
// arrive as RFC3339 strings so that unparseable values can be reported
// as a date-range error rather than a bind failure.
type CreateReservationInput struct {
	Responsible string
	Start       string
	End         string
	NotebookIDs []uint64
}

// BookingService orchestrates reservation creation, cancellation,
// listing and availability derivation over the injected stores.
type BookingService struct {
	notebooks    NotebookStore
	reservations ReservationStore
	audit        AuditRecorder
}

// NewBookingService wires the stores and the audit recorder.  All
// dependencies must be non-nil.
func NewBookingService(n NotebookStore, r ReservationStore, a AuditRecorder) *BookingService {
	if n == nil || r == nil || a == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{notebooks: n, reservations: r, audit: a}
}

// CreateReservation validates the request and commits one reservation
// row plus one association row per notebook as a single atomic unit.
// The validation chain short-circuits in order: invalid request,
// invalid date range, notebook not found, notebook unavailable,
// scheduling conflict.  On success the audit recorder is notified;
// audit failure never fails the booking.
func (s *BookingService) CreateReservation(ctx context.Context, in CreateReservationInput) (*model.ReservationDetail, error) {
	responsible := strings.TrimSpace(in.Responsible)
	if responsible == "" || in.Start == "" || in.End == "" || len(in.NotebookIDs) == 0 {
		return nil, ErrInvalidRequest
	}
	ids := dedupeIDs(in.NotebookIDs)
	if len(ids) == 0 {
		return nil, ErrInvalidRequest
	}
	w, err := ParseWindow(in.Start, in.End)
	if err != nil {
		return nil, err
	}

	res := &model.Reservation{
		ID:          uuid.NewString(),
		Responsible: responsible,
		StartsAt:    w.Start,
		EndsAt:      w.End,
	}
	if err := s.reservations.Create(ctx, res, ids); err != nil {
		return nil, passthrough(err)
	}

	detail := &model.ReservationDetail{Reservation: *res}
	notebooks, err := s.notebooks.GetByIDs(ctx, ids)
	if err != nil {
		// The booking is committed; return it with empty summaries
		// rather than failing the request over a read-back error.
		detail.Notebooks = []model.NotebookSummary{}
	} else {
		detail.Notebooks = summarize(notebooks)
	}

	s.audit.Record(ctx, queue.ActionReservationCreated, detail)
	return detail, nil
}

// CancelReservation deletes a reservation and its associations.  The
// audit event is emitted from the pre-deletion snapshot, after the
// delete commits, so no phantom cancellation is ever recorded for a
// delete that failed.
func (s *BookingService) CancelReservation(ctx context.Context, id string, actor Identity) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidRequest
	}
	snapshot, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return passthrough(err)
	}
	if err := s.reservations.Delete(ctx, id); err != nil {
		return passthrough(err)
	}
	s.audit.Record(ctx, queue.ActionReservationCancelled, cancelledEvent{
		ReservationDetail: *snapshot,
		CancelledBy:       actor.Username,
	})
	return nil
}

// GetReservation returns a single reservation with notebook summaries.
func (s *BookingService) GetReservation(ctx context.Context, id string) (*model.ReservationDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidRequest
	}
	detail, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, passthrough(err)
	}
	return detail, nil
}

// ListReservations returns reservations ordered by start time
// descending, each with its notebook summaries.
func (s *BookingService) ListReservations(ctx context.Context, filter ReservationFilter) ([]model.ReservationDetail, error) {
	items, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, passthrough(err)
	}
	return items, nil
}

// AvailableNotebooks lists notebooks open for booking.  With a window,
// a notebook qualifies when its status is "available" and no
// reservation overlapping [start,end) covers it; without one, status
// alone decides, since bookings only block overlapping windows.  Both
// bounds must be supplied together.
func (s *BookingService) AvailableNotebooks(ctx context.Context, start, end string) ([]model.Notebook, error) {
	if (start == "") != (end == "") {
		return nil, ErrInvalidRequest
	}
	available, err := s.notebooks.ListByStatus(ctx, model.StatusAvailable)
	if err != nil {
		return nil, passthrough(err)
	}
	if start == "" {
		return available, nil
	}
	w, err := ParseWindow(start, end)
	if err != nil {
		return nil, err
	}
	reserved, err := s.reservations.NotebooksReservedDuring(ctx, w)
	if err != nil {
		return nil, passthrough(err)
	}
	blocked := make(map[uint64]struct{}, len(reserved))
	for _, id := range reserved {
		blocked[id] = struct{}{}
	}
	out := make([]model.Notebook, 0, len(available))
	for _, n := range available {
		if _, ok := blocked[n.ID]; !ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// cancelledEvent is the audit payload for RESERVA_CANCELADA: the
// pre-deletion reservation snapshot plus the cancelling actor.
type cancelledEvent struct {
	model.ReservationDetail
	CancelledBy string `json:"cancelled_by"`
}

// passthrough keeps the typed domain errors intact and wraps anything
// else as an opaque storage failure.
func passthrough(err error) error {
	switch err.(type) {
	case *NotebookNotFoundError, *NotebookUnavailableError, *SchedulingConflictError:
		return err
	}
	switch err {
	case ErrInvalidRequest, ErrInvalidDateRange, ErrReservationNotFound:
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// dedupeIDs drops zeros and duplicates while preserving order.
func dedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func summarize(notebooks []model.Notebook) []model.NotebookSummary {
	out := make([]model.NotebookSummary, 0, len(notebooks))
	for _, n := range notebooks {
		out = append(out, n.Summary())
	}
	return out
}
