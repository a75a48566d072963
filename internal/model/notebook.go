package model

import "time"

// Notebook lifecycle statuses.  A notebook is bookable only while
// "available".  "under_maintenance" and "retired" are admin-controlled
// states; availability within a time window is otherwise derived from
// the reservation set, never stored on the notebook row.
const (
	StatusAvailable        = "available"
	StatusUnderMaintenance = "under_maintenance"
	StatusRetired          = "retired"
)

// ValidStatus reports whether s is one of the known notebook statuses.
func ValidStatus(s string) bool {
	return s == StatusAvailable || s == StatusUnderMaintenance || s == StatusRetired
}

// Notebook represents a loanable notebook in the shared pool as stored
// in the `notebooks` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name (e.g. "Notebook 01").
//  AssetTag  – optional patrimônio number; unique across all notebooks
//              when present.
//  Status    – lifecycle status (available, under_maintenance, retired).
//  RetiredAt – when the notebook was retired (null unless retired).
//  CreatedAt – creation timestamp.
//  UpdatedAt – timestamp of last update (null until first update).
type Notebook struct {
	ID        uint64     `json:"id"`         // notebooks.id
	Name      string     `json:"name"`       // notebooks.name
	AssetTag  *string    `json:"patrimonio"` // notebooks.patrimonio (nullable)
	Status    string     `json:"status"`     // notebooks.status
	RetiredAt *time.Time `json:"retired_at"` // notebooks.retired_at (nullable)
	CreatedAt time.Time  `json:"created_at"` // notebooks.created_at
	UpdatedAt *time.Time `json:"updated_at"` // notebooks.updated_at (nullable)
}

// NotebookSummary is the compact notebook representation embedded in
// reservation responses and audit events.
type NotebookSummary struct {
	ID       uint64  `json:"id"`
	Name     string  `json:"name"`
	AssetTag *string `json:"patrimonio"`
}

// Summary returns the compact representation of n.
func (n Notebook) Summary() NotebookSummary {
	return NotebookSummary{ID: n.ID, Name: n.Name, AssetTag: n.AssetTag}
}

// NotebookReport aggregates inventory counts by status.  "Total" counts
// every notebook that has not been retired.
type NotebookReport struct {
	Total            int `json:"total"`
	Available        int `json:"available"`
	UnderMaintenance int `json:"under_maintenance"`
	Retired          int `json:"retired"`
}
