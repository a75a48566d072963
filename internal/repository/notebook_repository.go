package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/notebook-reservation/internal/model"
)

// NotebookRepo provides CRUD operations for the notebook inventory.
// Lifecycle status on the notebook row covers only the admin-driven
// states (maintenance, retirement); availability within a time window
// is derived from the reservation set by ReservationRepo, never stored
// here, so the two can not drift apart.
type NotebookRepo struct {
	db *sql.DB
}

// NewNotebookRepo returns a NotebookRepo bound to the given database.
func NewNotebookRepo(db *sql.DB) *NotebookRepo { return &NotebookRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *NotebookRepo) DB() *sql.DB { return r.db }

const notebookColumns = "id, name, patrimonio, status, retired_at, created_at, updated_at"

func scanNotebook(row interface{ Scan(...any) error }) (model.Notebook, error) {
	var (
		n         model.Notebook
		assetTag  sql.NullString
		retiredAt sql.NullTime
		updatedAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.Name, &assetTag, &n.Status, &retiredAt, &n.CreatedAt, &updatedAt)
	if err != nil {
		return model.Notebook{}, err
	}
	if assetTag.Valid {
		tag := assetTag.String
		n.AssetTag = &tag
	}
	if retiredAt.Valid {
		t := retiredAt.Time.UTC()
		n.RetiredAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		n.UpdatedAt = &t
	}
	return n, nil
}

// Create inserts a notebook and populates the generated id and
// timestamps on the passed record.  A duplicate patrimônio number
// yields ErrAssetTagExists.
func (r *NotebookRepo) Create(ctx context.Context, n *model.Notebook) error {
	var tag any
	if n.AssetTag != nil && strings.TrimSpace(*n.AssetTag) != "" {
		tag = strings.TrimSpace(*n.AssetTag)
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notebooks (name, patrimonio, status) VALUES (?, ?, ?)",
		n.Name, tag, n.Status)
	if err != nil {
		if duplicateKey(err) {
			return ErrAssetTagExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*n = *created
	return nil
}

// GetByID fetches one notebook.  ErrNotebookNotFound when absent.
func (r *NotebookRepo) GetByID(ctx context.Context, id uint64) (*model.Notebook, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+notebookColumns+" FROM notebooks WHERE id = ?", id)
	n, err := scanNotebook(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotebookNotFound
		}
		return nil, err
	}
	return &n, nil
}

// GetByIDs returns the notebooks matching ids, in id order.  Missing
// ids are simply absent from the result.
func (r *NotebookRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Notebook, error) {
	if len(ids) == 0 {
		return []model.Notebook{}, nil
	}
	query := "SELECT " + notebookColumns + " FROM notebooks WHERE id IN (" +
		placeholders(len(ids)) + ") ORDER BY id"
	rows, err := r.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotebooks(rows)
}

// List returns every notebook regardless of status, oldest first.
func (r *NotebookRepo) List(ctx context.Context) ([]model.Notebook, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+notebookColumns+" FROM notebooks ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotebooks(rows)
}

// ListByStatus returns all notebooks in the given lifecycle status.
func (r *NotebookRepo) ListByStatus(ctx context.Context, status string) ([]model.Notebook, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+notebookColumns+" FROM notebooks WHERE status = ? ORDER BY id", status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotebooks(rows)
}

// Update changes name, patrimônio and status of a notebook.  The
// status transition rules are enforced inside one transaction:
//   - leaving "available" is refused while reservations ending in the
//     future still cover the notebook (ErrHasFutureReservations);
//   - entering "retired" stamps retired_at;
//   - leaving "retired" clears retired_at.
func (r *NotebookRepo) Update(ctx context.Context, id uint64, name string, assetTag *string, status string) (*model.Notebook, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+notebookColumns+" FROM notebooks WHERE id = ? FOR UPDATE", id)
	current, err := scanNotebook(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotebookNotFound
		}
		return nil, err
	}

	if current.Status == model.StatusAvailable && status != model.StatusAvailable {
		future, err := futureReservationCountTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if future > 0 {
			return nil, ErrHasFutureReservations
		}
	}

	var tag any
	if assetTag != nil && strings.TrimSpace(*assetTag) != "" {
		tag = strings.TrimSpace(*assetTag)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE notebooks
		SET name = ?, patrimonio = ?, status = ?,
		    updated_at = UTC_TIMESTAMP(),
		    retired_at = CASE
		        WHEN ? = 'retired' AND status <> 'retired' THEN UTC_TIMESTAMP()
		        WHEN ? <> 'retired' THEN NULL
		        ELSE retired_at
		    END
		WHERE id = ?`,
		name, tag, status, status, status, id)
	if err != nil {
		if duplicateKey(err) {
			return nil, ErrAssetTagExists
		}
		return nil, err
	}

	row = tx.QueryRowContext(ctx,
		"SELECT "+notebookColumns+" FROM notebooks WHERE id = ?", id)
	updated, err := scanNotebook(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &updated, nil
}

// Retire soft-deletes a notebook: status becomes "retired" and
// retired_at is stamped.  Refused while future reservations cover the
// notebook; past associations are kept since the reservation owns
// them.
func (r *NotebookRepo) Retire(ctx context.Context, id uint64) (*model.Notebook, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+notebookColumns+" FROM notebooks WHERE id = ? FOR UPDATE", id)
	current, err := scanNotebook(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotebookNotFound
		}
		return nil, err
	}
	future, err := futureReservationCountTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if future > 0 {
		return nil, ErrHasFutureReservations
	}
	if current.Status != model.StatusRetired {
		_, err = tx.ExecContext(ctx,
			"UPDATE notebooks SET status = 'retired', retired_at = UTC_TIMESTAMP(), updated_at = UTC_TIMESTAMP() WHERE id = ?",
			id)
		if err != nil {
			return nil, err
		}
	}
	row = tx.QueryRowContext(ctx,
		"SELECT "+notebookColumns+" FROM notebooks WHERE id = ?", id)
	retired, err := scanNotebook(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &retired, nil
}

// Report aggregates inventory counts by status.  Total excludes
// retired notebooks.
func (r *NotebookRepo) Report(ctx context.Context) (*model.NotebookReport, error) {
	const q = `
		SELECT
			COALESCE(SUM(status <> 'retired'), 0),
			COALESCE(SUM(status = 'available'), 0),
			COALESCE(SUM(status = 'under_maintenance'), 0),
			COALESCE(SUM(status = 'retired'), 0)
		FROM notebooks`
	var rep model.NotebookReport
	err := r.db.QueryRowContext(ctx, q).Scan(
		&rep.Total, &rep.Available, &rep.UnderMaintenance, &rep.Retired)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// futureReservationCountTx counts reservations covering the notebook
// whose end is still in the future.
func futureReservationCountTx(ctx context.Context, tx *sql.Tx, notebookID uint64) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM reservations r
		JOIN reservation_notebooks rn ON rn.reservation_id = r.id
		WHERE rn.notebook_id = ? AND r.ends_at > UTC_TIMESTAMP()`
	var n int
	err := tx.QueryRowContext(ctx, q, notebookID).Scan(&n)
	return n, err
}

func collectNotebooks(rows *sql.Rows) ([]model.Notebook, error) {
	out := make([]model.Notebook, 0)
	for rows.Next() {
		n, err := scanNotebook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// placeholders builds "?,?,?" for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
