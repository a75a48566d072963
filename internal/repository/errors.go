// Package repository implements the MySQL stores.  Each repository is
// bound to a *sql.DB; methods suffixed Tx run inside a caller-owned
// transaction.  Sentinel values defined here let higher layers
// distinguish failure scenarios without string matching.
package repository

import (
	"errors"
	"strings"
)

// ErrNotebookNotFound is returned when a notebook id does not resolve
// to any row.
var ErrNotebookNotFound = errors.New("notebook not found")

// ErrAssetTagExists is returned when creating or updating a notebook
// with a patrimônio number already carried by another notebook.
var ErrAssetTagExists = errors.New("asset tag already exists")

// ErrHasFutureReservations is returned when a notebook cannot leave
// the "available" status because reservations ending in the future
// still cover it.  Callers must cancel those reservations first.
var ErrHasFutureReservations = errors.New("notebook has future reservations")

// duplicateKey reports whether err is a MySQL duplicate-entry error
// (code 1062).  The schema relies on unique indexes for the asset
// tag, username and email columns.
func duplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "1062") || strings.Contains(msg, "Duplicate entry")
}
