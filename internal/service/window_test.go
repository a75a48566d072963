package service

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func win(t *testing.T, start, end string) Window {
	t.Helper()
	return Window{Start: mustTime(t, start), End: mustTime(t, end)}
}

func TestWindowValid(t *testing.T) {
	if !win(t, "2026-03-01T09:00:00Z", "2026-03-01T10:00:00Z").Valid() {
		t.Error("one-hour window should be valid")
	}
	if win(t, "2026-03-01T09:00:00Z", "2026-03-01T09:00:00Z").Valid() {
		t.Error("zero-length window should be invalid")
	}
	if win(t, "2026-03-01T10:00:00Z", "2026-03-01T09:00:00Z").Valid() {
		t.Error("reversed window should be invalid")
	}
}

func TestWindowOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Window
		want bool
	}{
		{
			name: "partial overlap",
			a:    win(t, "2026-03-01T09:00:00Z", "2026-03-01T11:00:00Z"),
			b:    win(t, "2026-03-01T10:00:00Z", "2026-03-01T12:00:00Z"),
			want: true,
		},
		{
			name: "containment",
			a:    win(t, "2026-03-01T09:00:00Z", "2026-03-01T12:00:00Z"),
			b:    win(t, "2026-03-01T10:00:00Z", "2026-03-01T11:00:00Z"),
			want: true,
		},
		{
			name: "identical",
			a:    win(t, "2026-03-01T09:00:00Z", "2026-03-01T10:00:00Z"),
			b:    win(t, "2026-03-01T09:00:00Z", "2026-03-01T10:00:00Z"),
			want: true,
		},
		{
			name: "boundary touch is not overlap",
			a:    win(t, "2026-03-01T09:00:00Z", "2026-03-01T10:00:00Z"),
			b:    win(t, "2026-03-01T10:00:00Z", "2026-03-01T11:00:00Z"),
			want: false,
		},
		{
			name: "disjoint",
			a:    win(t, "2026-03-01T09:00:00Z", "2026-03-01T10:00:00Z"),
			b:    win(t, "2026-03-01T11:00:00Z", "2026-03-01T12:00:00Z"),
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Errorf("a.Overlaps(b) = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Errorf("b.Overlaps(a) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2026-03-01T09:00:00-03:00", "2026-03-01T13:00:00Z")
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	if w.Start.Location() != time.UTC || w.End.Location() != time.UTC {
		t.Error("parsed window should be normalized to UTC")
	}
	if got := w.Start.Format(time.RFC3339); got != "2026-03-01T12:00:00Z" {
		t.Errorf("Start = %s, want 2026-03-01T12:00:00Z", got)
	}

	if _, err := ParseWindow("not-a-time", "2026-03-01T10:00:00Z"); err != ErrInvalidDateRange {
		t.Errorf("bad start: err = %v, want ErrInvalidDateRange", err)
	}
	if _, err := ParseWindow("2026-03-01T09:00:00Z", "oops"); err != ErrInvalidDateRange {
		t.Errorf("bad end: err = %v, want ErrInvalidDateRange", err)
	}
	if _, err := ParseWindow("2026-03-01T10:00:00Z", "2026-03-01T10:00:00Z"); err != ErrInvalidDateRange {
		t.Errorf("zero-length: err = %v, want ErrInvalidDateRange", err)
	}
	if _, err := ParseWindow("2026-03-01T11:00:00Z", "2026-03-01T10:00:00Z"); err != ErrInvalidDateRange {
		t.Errorf("reversed: err = %v, want ErrInvalidDateRange", err)
	}
}
