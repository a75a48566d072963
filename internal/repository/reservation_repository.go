package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/notebook-reservation/internal/model"
	"github.com/iliyamo/notebook-reservation/internal/service"
)

// ReservationRepo persists reservations and their notebook
// associations.  It implements service.ReservationStore.
//
// Concurrency: Create locks the requested notebook rows with
// SELECT ... FOR UPDATE before the overlap query, so two concurrent
// bookings sharing a notebook serialize on the row locks and the
// second sees the first one's committed rows.  The conflict check and
// both inserts therefore run in one serializable scope; there is no
// check-then-act gap.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create validates and inserts one reservation row plus one
// association row per notebook as a single transaction.  Checks run in
// contract order: existence, availability status, overlap.  Either all
// rows exist afterwards or none do.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation, notebookIDs []uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the notebook rows first; all concurrent bookings touching
	// any of these notebooks queue up here.
	query := "SELECT id, status FROM notebooks WHERE id IN (" +
		placeholders(len(notebookIDs)) + ") FOR UPDATE"
	rows, err := tx.QueryContext(ctx, query, idArgs(notebookIDs)...)
	if err != nil {
		return err
	}
	status := make(map[uint64]string, len(notebookIDs))
	for rows.Next() {
		var (
			id uint64
			st string
		)
		if err := rows.Scan(&id, &st); err != nil {
			rows.Close()
			return err
		}
		status[id] = st
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []uint64
	unavailable := &service.NotebookUnavailableError{}
	for _, id := range notebookIDs {
		st, ok := status[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		switch st {
		case model.StatusUnderMaintenance:
			unavailable.UnderMaintenance = append(unavailable.UnderMaintenance, id)
		case model.StatusRetired:
			unavailable.Retired = append(unavailable.Retired, id)
		}
	}
	if len(missing) > 0 {
		return &service.NotebookNotFoundError{IDs: missing}
	}
	if len(unavailable.IDs()) > 0 {
		return unavailable
	}

	w := service.Window{Start: res.StartsAt, End: res.EndsAt}
	conflict, err := conflictingTx(ctx, tx, notebookIDs, w, "")
	if err != nil {
		return err
	}
	if conflict != nil {
		return conflict
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO reservations (id, responsible, starts_at, ends_at) VALUES (?, ?, ?, ?)",
		res.ID, res.Responsible, res.StartsAt, res.EndsAt); err != nil {
		return err
	}
	if err := createAssociationsTx(ctx, tx, res.ID, notebookIDs); err != nil {
		return err
	}
	// Read back to populate database-generated timestamps.
	if err := tx.QueryRowContext(ctx,
		"SELECT created_at FROM reservations WHERE id = ?", res.ID).
		Scan(&res.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// conflictingTx finds existing reservations overlapping w on any of
// the given notebooks.  Two half-open windows overlap iff
// s1 < e2 AND s2 < e1, hence the predicate starts_at < end AND
// ends_at > start.  excludeID skips one reservation, for re-booking
// checks; empty means no exclusion.  Returns nil when no overlap.
func conflictingTx(ctx context.Context, tx *sql.Tx, notebookIDs []uint64, w service.Window, excludeID string) (*service.SchedulingConflictError, error) {
	query := `
		SELECT DISTINCT r.id, rn.notebook_id
		FROM reservations r
		JOIN reservation_notebooks rn ON rn.reservation_id = r.id
		WHERE rn.notebook_id IN (` + placeholders(len(notebookIDs)) + `)
		  AND r.starts_at < ? AND r.ends_at > ?`
	args := idArgs(notebookIDs)
	args = append(args, w.End, w.Start)
	if excludeID != "" {
		query += " AND r.id <> ?"
		args = append(args, excludeID)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conflict := &service.SchedulingConflictError{}
	seenRes := make(map[string]struct{})
	seenNb := make(map[uint64]struct{})
	for rows.Next() {
		var (
			resID string
			nbID  uint64
		)
		if err := rows.Scan(&resID, &nbID); err != nil {
			return nil, err
		}
		if _, ok := seenRes[resID]; !ok {
			seenRes[resID] = struct{}{}
			conflict.ReservationIDs = append(conflict.ReservationIDs, resID)
		}
		if _, ok := seenNb[nbID]; !ok {
			seenNb[nbID] = struct{}{}
			conflict.NotebookIDs = append(conflict.NotebookIDs, nbID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(conflict.ReservationIDs) == 0 {
		return nil, nil
	}
	return conflict, nil
}

// createAssociationsTx bulk-inserts the reservation_notebooks rows in
// a single statement.
func createAssociationsTx(ctx context.Context, tx *sql.Tx, reservationID string, notebookIDs []uint64) error {
	if len(notebookIDs) == 0 {
		return nil
	}
	query := "INSERT INTO reservation_notebooks (reservation_id, notebook_id) VALUES "
	args := make([]any, 0, len(notebookIDs)*2)
	for i, id := range notebookIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, reservationID, id)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

const reservationColumns = "id, responsible, starts_at, ends_at, created_at, updated_at"

func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var (
		res       model.Reservation
		updatedAt sql.NullTime
	)
	err := row.Scan(&res.ID, &res.Responsible, &res.StartsAt, &res.EndsAt, &res.CreatedAt, &updatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	res.StartsAt = res.StartsAt.UTC()
	res.EndsAt = res.EndsAt.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		res.UpdatedAt = &t
	}
	return res, nil
}

// GetByID returns one reservation with its notebook summaries.
// service.ErrReservationNotFound when absent.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.ReservationDetail, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id)
	res, err := scanReservation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, service.ErrReservationNotFound
		}
		return nil, err
	}
	detail := &model.ReservationDetail{Reservation: res, Notebooks: []model.NotebookSummary{}}
	const q = `
		SELECT n.id, n.name, n.patrimonio
		FROM reservation_notebooks rn
		JOIN notebooks n ON n.id = rn.notebook_id
		WHERE rn.reservation_id = ?
		ORDER BY n.id`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		detail.Notebooks = append(detail.Notebooks, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns reservations newest-start first, each with its notebook
// summaries populated in one batch query.  The filter narrows by
// covered notebook and by responsible-party substring.
func (r *ReservationRepo) List(ctx context.Context, filter service.ReservationFilter) ([]model.ReservationDetail, error) {
	query := "SELECT " + reservationColumns + " FROM reservations r"
	args := []any{}
	var where []string
	if filter.NotebookID != 0 {
		where = append(where,
			"EXISTS (SELECT 1 FROM reservation_notebooks rn WHERE rn.reservation_id = r.id AND rn.notebook_id = ?)")
		args = append(args, filter.NotebookID)
	}
	if filter.Responsible != "" {
		where = append(where, "r.responsible LIKE ?")
		args = append(args, "%"+filter.Responsible+"%")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.starts_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]model.ReservationDetail, 0)
	index := make(map[string]int)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		index[res.ID] = len(details)
		details = append(details, model.ReservationDetail{
			Reservation: res,
			Notebooks:   []model.NotebookSummary{},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}

	// Populate notebook summaries for all reservations in one query.
	ids := make([]any, 0, len(details))
	marks := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		marks = append(marks, "?")
	}
	q := `
		SELECT rn.reservation_id, n.id, n.name, n.patrimonio
		FROM reservation_notebooks rn
		JOIN notebooks n ON n.id = rn.notebook_id
		WHERE rn.reservation_id IN (` + strings.Join(marks, ",") + `)
		ORDER BY rn.reservation_id, n.id`
	srows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var (
			resID    string
			nb       model.NotebookSummary
			assetTag sql.NullString
		)
		if err := srows.Scan(&resID, &nb.ID, &nb.Name, &assetTag); err != nil {
			return nil, err
		}
		if assetTag.Valid {
			tag := assetTag.String
			nb.AssetTag = &tag
		}
		if i, ok := index[resID]; ok {
			details[i].Notebooks = append(details[i].Notebooks, nb)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// Delete removes the reservation and its association rows atomically.
// Existence is re-checked under lock inside the transaction so a
// concurrent cancel simply reports not-found instead of failing.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var found string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM reservations WHERE id = ? FOR UPDATE", id).Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return service.ErrReservationNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM reservation_notebooks WHERE reservation_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM reservations WHERE id = ?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// NotebooksReservedDuring returns the ids of notebooks covered by any
// reservation overlapping w.  Used to derive availability listings.
func (r *ReservationRepo) NotebooksReservedDuring(ctx context.Context, w service.Window) ([]uint64, error) {
	const q = `
		SELECT DISTINCT rn.notebook_id
		FROM reservation_notebooks rn
		JOIN reservations r ON r.id = rn.reservation_id
		WHERE r.starts_at < ? AND r.ends_at > ?`
	rows, err := r.db.QueryContext(ctx, q, w.End, w.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSummary(rows *sql.Rows) (model.NotebookSummary, error) {
	var (
		s        model.NotebookSummary
		assetTag sql.NullString
	)
	if err := rows.Scan(&s.ID, &s.Name, &assetTag); err != nil {
		return model.NotebookSummary{}, err
	}
	if assetTag.Valid {
		tag := assetTag.String
		s.AssetTag = &tag
	}
	return s, nil
}
