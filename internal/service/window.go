package service

import "time"

// Window is a half-open time interval [Start, End).  The start is
// included and the end is excluded, so a reservation ending at T and
// another starting at T do not collide.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window is well formed: End strictly after
// Start.  A zero-length window is invalid, not an empty booking.
func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether two half-open windows intersect.  Two
// intervals [s1,e1) and [s2,e2) overlap iff s1 < e2 and s2 < e1;
// touching at exactly the boundary is not an overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// ParseWindow parses RFC3339 start/end strings into a Window in UTC.
// Unparseable values or End <= Start yield ErrInvalidDateRange.
func ParseWindow(start, end string) (Window, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return Window{}, ErrInvalidDateRange
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return Window{}, ErrInvalidDateRange
	}
	w := Window{Start: s.UTC(), End: e.UTC()}
	if !w.Valid() {
		return Window{}, ErrInvalidDateRange
	}
	return w, nil
}
