package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/notebook-reservation/internal/model"
	"github.com/iliyamo/notebook-reservation/internal/queue"
)

// memStore is an in-memory NotebookStore plus ReservationStore.  Create
// runs the full existence, status and overlap check under one mutex so
// the concurrency behavior mirrors the row-locked MySQL implementation.
type memStore struct {
	mu           sync.Mutex
	notebooks    map[uint64]model.Notebook
	reservations map[string]*storedReservation
	failCreate   error // injected storage fault
}

type storedReservation struct {
	res model.Reservation
	ids []uint64
}

func newMemStore(notebooks ...model.Notebook) *memStore {
	s := &memStore{
		notebooks:    make(map[uint64]model.Notebook),
		reservations: make(map[string]*storedReservation),
	}
	for _, n := range notebooks {
		s.notebooks[n.ID] = n
	}
	return s
}

func (s *memStore) GetByIDs(_ context.Context, ids []uint64) ([]model.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notebook, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.notebooks[id]; ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListByStatus(_ context.Context, status string) ([]model.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notebook, 0)
	for _, n := range s.notebooks {
		if n.Status == status {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Create(_ context.Context, res *model.Reservation, ids []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}

	var missing []uint64
	unavailable := &NotebookUnavailableError{}
	for _, id := range ids {
		n, ok := s.notebooks[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		switch n.Status {
		case model.StatusUnderMaintenance:
			unavailable.UnderMaintenance = append(unavailable.UnderMaintenance, id)
		case model.StatusRetired:
			unavailable.Retired = append(unavailable.Retired, id)
		}
	}
	if len(missing) > 0 {
		return &NotebookNotFoundError{IDs: missing}
	}
	if len(unavailable.IDs()) > 0 {
		return unavailable
	}

	w := Window{Start: res.StartsAt, End: res.EndsAt}
	conflict := &SchedulingConflictError{}
	for _, sr := range s.reservations {
		other := Window{Start: sr.res.StartsAt, End: sr.res.EndsAt}
		if !w.Overlaps(other) {
			continue
		}
		for _, id := range ids {
			for _, held := range sr.ids {
				if id == held {
					conflict.NotebookIDs = append(conflict.NotebookIDs, id)
					conflict.ReservationIDs = append(conflict.ReservationIDs, sr.res.ID)
				}
			}
		}
	}
	if len(conflict.ReservationIDs) > 0 {
		return conflict
	}

	res.CreatedAt = time.Now().UTC()
	cp := *res
	s.reservations[res.ID] = &storedReservation{res: cp, ids: append([]uint64(nil), ids...)}
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*model.ReservationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	return s.detailLocked(sr), nil
}

func (s *memStore) List(_ context.Context, filter ReservationFilter) ([]model.ReservationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ReservationDetail, 0)
	for _, sr := range s.reservations {
		if filter.NotebookID != 0 {
			held := false
			for _, id := range sr.ids {
				if id == filter.NotebookID {
					held = true
				}
			}
			if !held {
				continue
			}
		}
		if filter.Responsible != "" &&
			!strings.Contains(strings.ToLower(sr.res.Responsible), strings.ToLower(filter.Responsible)) {
			continue
		}
		out = append(out, *s.detailLocked(sr))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[id]; !ok {
		return ErrReservationNotFound
	}
	delete(s.reservations, id)
	return nil
}

func (s *memStore) NotebooksReservedDuring(_ context.Context, w Window) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uint64]struct{})
	for _, sr := range s.reservations {
		if w.Overlaps(Window{Start: sr.res.StartsAt, End: sr.res.EndsAt}) {
			for _, id := range sr.ids {
				seen[id] = struct{}{}
			}
		}
	}
	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

func (s *memStore) detailLocked(sr *storedReservation) *model.ReservationDetail {
	d := &model.ReservationDetail{Reservation: sr.res, Notebooks: []model.NotebookSummary{}}
	for _, id := range sr.ids {
		if n, ok := s.notebooks[id]; ok {
			d.Notebooks = append(d.Notebooks, n.Summary())
		}
	}
	return d
}

// memAudit records audit events in memory.
type memAudit struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	action string
	data   any
}

func (a *memAudit) Record(_ context.Context, action string, data any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, recordedEvent{action: action, data: data})
}

func (a *memAudit) byAction(action string) []recordedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []recordedEvent{}
	for _, ev := range a.events {
		if ev.action == action {
			out = append(out, ev)
		}
	}
	return out
}

func notebook(id uint64, status string) model.Notebook {
	return model.Notebook{ID: id, Name: "Notebook", Status: status, CreatedAt: time.Now().UTC()}
}

func newTestService(notebooks ...model.Notebook) (*BookingService, *memStore, *memAudit) {
	store := newMemStore(notebooks...)
	audit := &memAudit{}
	return NewBookingService(store, store, audit), store, audit
}

const (
	tMorning9  = "2026-03-02T09:00:00Z"
	tMorning10 = "2026-03-02T10:00:00Z"
	tMorning11 = "2026-03-02T11:00:00Z"
	tNoon      = "2026-03-02T12:00:00Z"
	tAfternoon = "2026-03-02T14:00:00Z"
)

func TestCreateReservationValidation(t *testing.T) {
	svc, _, _ := newTestService(notebook(1, model.StatusAvailable))
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateReservationInput
		want error
	}{
		{"empty responsible", CreateReservationInput{Responsible: "  ", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{1}}, ErrInvalidRequest},
		{"no notebooks", CreateReservationInput{Responsible: "alice", Start: tMorning9, End: tMorning10}, ErrInvalidRequest},
		{"only zero ids", CreateReservationInput{Responsible: "alice", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{0, 0}}, ErrInvalidRequest},
		{"bad timestamp", CreateReservationInput{Responsible: "alice", Start: "tomorrow", End: tMorning10, NotebookIDs: []uint64{1}}, ErrInvalidDateRange},
		{"end equals start", CreateReservationInput{Responsible: "alice", Start: tMorning9, End: tMorning9, NotebookIDs: []uint64{1}}, ErrInvalidDateRange},
		{"end before start", CreateReservationInput{Responsible: "alice", Start: tMorning10, End: tMorning9, NotebookIDs: []uint64{1}}, ErrInvalidDateRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateReservation(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateReservationUnknownNotebook(t *testing.T) {
	svc, _, _ := newTestService(notebook(1, model.StatusAvailable))

	_, err := svc.CreateReservation(context.Background(), CreateReservationInput{
		Responsible: "alice", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{1, 99},
	})
	var nf *NotebookNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotebookNotFoundError", err)
	}
	if len(nf.IDs) != 1 || nf.IDs[0] != 99 {
		t.Errorf("missing ids = %v, want [99]", nf.IDs)
	}
}

func TestCreateReservationUnavailableNotebook(t *testing.T) {
	svc, _, _ := newTestService(
		notebook(1, model.StatusAvailable),
		notebook(2, model.StatusUnderMaintenance),
		notebook(3, model.StatusRetired),
	)

	_, err := svc.CreateReservation(context.Background(), CreateReservationInput{
		Responsible: "alice", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{1, 2, 3},
	})
	var ua *NotebookUnavailableError
	if !errors.As(err, &ua) {
		t.Fatalf("err = %v, want *NotebookUnavailableError", err)
	}
	if len(ua.UnderMaintenance) != 1 || ua.UnderMaintenance[0] != 2 {
		t.Errorf("under_maintenance = %v, want [2]", ua.UnderMaintenance)
	}
	if len(ua.Retired) != 1 || ua.Retired[0] != 3 {
		t.Errorf("retired = %v, want [3]", ua.Retired)
	}
}

// A request sharing one notebook with an existing overlapping
// reservation is refused with the offending reservation named; shifting
// the window past the end of the existing booking succeeds.  Touching
// windows never conflict.
func TestCreateReservationConflict(t *testing.T) {
	svc, store, _ := newTestService(
		notebook(1, model.StatusAvailable),
		notebook(2, model.StatusAvailable),
		notebook(3, model.StatusAvailable),
	)
	ctx := context.Background()

	alice, err := svc.CreateReservation(ctx, CreateReservationInput{
		Responsible: "alice", Start: tMorning9, End: tMorning11, NotebookIDs: []uint64{1, 2},
	})
	if err != nil {
		t.Fatalf("alice booking: %v", err)
	}

	_, err = svc.CreateReservation(ctx, CreateReservationInput{
		Responsible: "bob", Start: tMorning10, End: tNoon, NotebookIDs: []uint64{2, 3},
	})
	var conflict *SchedulingConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *SchedulingConflictError", err)
	}
	if len(conflict.NotebookIDs) != 1 || conflict.NotebookIDs[0] != 2 {
		t.Errorf("conflicting notebooks = %v, want [2]", conflict.NotebookIDs)
	}
	if len(conflict.ReservationIDs) != 1 || conflict.ReservationIDs[0] != alice.ID {
		t.Errorf("conflicting reservations = %v, want [%s]", conflict.ReservationIDs, alice.ID)
	}
	// Nothing of bob's half-failed attempt may persist.
	if len(store.reservations) != 1 {
		t.Fatalf("stored reservations = %d, want 1", len(store.reservations))
	}

	// Touching at the boundary is allowed.
	if _, err := svc.CreateReservation(ctx, CreateReservationInput{
		Responsible: "bob", Start: tMorning11, End: tNoon, NotebookIDs: []uint64{2, 3},
	}); err != nil {
		t.Fatalf("boundary booking: %v", err)
	}
}

func TestCreateReservationSuccess(t *testing.T) {
	svc, _, audit := newTestService(
		notebook(1, model.StatusAvailable),
		notebook(2, model.StatusAvailable),
	)

	detail, err := svc.CreateReservation(context.Background(), CreateReservationInput{
		Responsible: "alice", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{2, 1, 2},
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if detail.ID == "" {
		t.Error("reservation id should be generated")
	}
	if len(detail.Notebooks) != 2 {
		t.Errorf("notebook summaries = %d, want 2 (duplicates dropped)", len(detail.Notebooks))
	}
	created := audit.byAction(queue.ActionReservationCreated)
	if len(created) != 1 {
		t.Fatalf("created audit events = %d, want 1", len(created))
	}
}

func TestCreateReservationStorageFailure(t *testing.T) {
	svc, store, audit := newTestService(notebook(1, model.StatusAvailable))
	store.failCreate = errors.New("connection reset")

	_, err := svc.CreateReservation(context.Background(), CreateReservationInput{
		Responsible: "alice", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{1},
	})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	if len(audit.byAction(queue.ActionReservationCreated)) != 0 {
		t.Error("failed booking must not emit an audit event")
	}
}

// Two goroutines race for the same notebook and window; exactly one
// booking commits.
func TestCreateReservationConcurrent(t *testing.T) {
	svc, store, _ := newTestService(notebook(1, model.StatusAvailable))
	in := CreateReservationInput{
		Responsible: "racer", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{1},
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateReservation(context.Background(), in)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			var conflict *SchedulingConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("unexpected error: %v", err)
			}
			conflicts++
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Errorf("ok = %d, conflicts = %d; want exactly one of each", ok, conflicts)
	}
	if len(store.reservations) != 1 {
		t.Errorf("stored reservations = %d, want 1", len(store.reservations))
	}
}

func TestCancelReservation(t *testing.T) {
	svc, store, audit := newTestService(notebook(1, model.StatusAvailable))
	ctx := context.Background()

	detail, err := svc.CreateReservation(ctx, CreateReservationInput{
		Responsible: "alice", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{1},
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	actor := Identity{ID: 7, Username: "carol", Role: "user"}
	if err := svc.CancelReservation(ctx, detail.ID, actor); err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if len(store.reservations) != 0 {
		t.Error("reservation should be gone after cancellation")
	}

	cancelled := audit.byAction(queue.ActionReservationCancelled)
	if len(cancelled) != 1 {
		t.Fatalf("cancelled audit events = %d, want 1", len(cancelled))
	}
	ev, ok := cancelled[0].data.(cancelledEvent)
	if !ok {
		t.Fatalf("audit payload type = %T, want cancelledEvent", cancelled[0].data)
	}
	if ev.ID != detail.ID {
		t.Errorf("audit snapshot id = %s, want %s", ev.ID, detail.ID)
	}
	if ev.CancelledBy != "carol" {
		t.Errorf("cancelled_by = %s, want carol", ev.CancelledBy)
	}
	if len(ev.Notebooks) != 1 {
		t.Errorf("audit snapshot notebooks = %d, want 1", len(ev.Notebooks))
	}

	// The notebook is bookable again.
	if _, err := svc.CreateReservation(ctx, CreateReservationInput{
		Responsible: "bob", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{1},
	}); err != nil {
		t.Fatalf("rebooking after cancel: %v", err)
	}
}

func TestCancelReservationUnknown(t *testing.T) {
	svc, _, audit := newTestService(notebook(1, model.StatusAvailable))

	err := svc.CancelReservation(context.Background(), "no-such-id", Identity{Username: "x"})
	if !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("err = %v, want ErrReservationNotFound", err)
	}
	if len(audit.byAction(queue.ActionReservationCancelled)) != 0 {
		t.Error("failed cancellation must not emit an audit event")
	}
}

func TestAvailableNotebooks(t *testing.T) {
	svc, _, _ := newTestService(
		notebook(1, model.StatusAvailable),
		notebook(2, model.StatusAvailable),
		notebook(3, model.StatusUnderMaintenance),
	)
	ctx := context.Background()

	if _, err := svc.CreateReservation(ctx, CreateReservationInput{
		Responsible: "alice", Start: tMorning9, End: tMorning11, NotebookIDs: []uint64{1},
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	// One-sided bounds are refused.
	if _, err := svc.AvailableNotebooks(ctx, tMorning9, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("one-sided bound: err = %v, want ErrInvalidRequest", err)
	}

	// Without a window only the lifecycle status filters.
	all, err := svc.AvailableNotebooks(ctx, "", "")
	if err != nil {
		t.Fatalf("AvailableNotebooks: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("available without window = %d, want 2", len(all))
	}

	// Overlapping window hides the reserved notebook.
	during, err := svc.AvailableNotebooks(ctx, tMorning10, tNoon)
	if err != nil {
		t.Fatalf("AvailableNotebooks: %v", err)
	}
	if len(during) != 1 || during[0].ID != 2 {
		t.Errorf("available during = %v, want only notebook 2", ids(during))
	}

	// Disjoint window sees everything available again.
	later, err := svc.AvailableNotebooks(ctx, tNoon, tAfternoon)
	if err != nil {
		t.Fatalf("AvailableNotebooks: %v", err)
	}
	if len(later) != 2 {
		t.Errorf("available later = %d, want 2", len(later))
	}
}

func TestListAndGetReservations(t *testing.T) {
	svc, _, _ := newTestService(
		notebook(1, model.StatusAvailable),
		notebook(2, model.StatusAvailable),
	)
	ctx := context.Background()

	first, err := svc.CreateReservation(ctx, CreateReservationInput{
		Responsible: "alice", Start: tMorning9, End: tMorning10, NotebookIDs: []uint64{1},
	})
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := svc.CreateReservation(ctx, CreateReservationInput{
		Responsible: "bob", Start: tNoon, End: tAfternoon, NotebookIDs: []uint64{2},
	}); err != nil {
		t.Fatalf("second booking: %v", err)
	}

	all, err := svc.ListReservations(ctx, ReservationFilter{})
	if err != nil {
		t.Fatalf("ListReservations: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("listed = %d, want 2", len(all))
	}

	// Listing is a pure read: a second call with no intervening writes
	// returns the same reservations in the same order.
	again, err := svc.ListReservations(ctx, ReservationFilter{})
	if err != nil {
		t.Fatalf("ListReservations: %v", err)
	}
	if len(again) != len(all) {
		t.Fatalf("second listing = %d items, want %d", len(again), len(all))
	}
	for i := range all {
		if again[i].ID != all[i].ID {
			t.Errorf("listing order changed at %d: %s vs %s", i, again[i].ID, all[i].ID)
		}
	}

	// Responsible filters as a case-insensitive substring.
	byName, err := svc.ListReservations(ctx, ReservationFilter{Responsible: "ALI"})
	if err != nil {
		t.Fatalf("ListReservations: %v", err)
	}
	if len(byName) != 1 || byName[0].Responsible != "alice" {
		t.Errorf("responsible filter returned %d items, want only alice's", len(byName))
	}
	if none, _ := svc.ListReservations(ctx, ReservationFilter{Responsible: "zz"}); len(none) != 0 {
		t.Errorf("non-matching responsible filter returned %d items, want 0", len(none))
	}

	only1, err := svc.ListReservations(ctx, ReservationFilter{NotebookID: 1})
	if err != nil {
		t.Fatalf("ListReservations: %v", err)
	}
	if len(only1) != 1 || only1[0].ID != first.ID {
		t.Errorf("filtered listing should contain exactly alice's reservation")
	}

	got, err := svc.GetReservation(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if got.Responsible != "alice" || len(got.Notebooks) != 1 {
		t.Errorf("GetReservation returned %+v", got)
	}

	if _, err := svc.GetReservation(ctx, "missing"); !errors.Is(err, ErrReservationNotFound) {
		t.Errorf("unknown id: err = %v, want ErrReservationNotFound", err)
	}
}

func ids(notebooks []model.Notebook) []uint64 {
	out := make([]uint64, len(notebooks))
	for i, n := range notebooks {
		out[i] = n.ID
	}
	return out
}
