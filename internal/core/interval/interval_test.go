package interval

import (
	"errors"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 15, hour, minute, 0, 0, time.UTC)
}

func mustNew(t *testing.T, start, end time.Time, owner string) Interval {
	t.Helper()
	iv, err := New(start, end, owner)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return iv
}

func TestNew_RejectsEmptyOrInvertedRange(t *testing.T) {
	t.Parallel()

	if _, err := New(at(8, 0), at(8, 0), "emp-1"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for zero length, got %v", err)
	}
	if _, err := New(at(16, 0), at(8, 0), "emp-1"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for inverted range, got %v", err)
	}
	if _, err := New(at(8, 0), at(16, 0), "  "); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner, got %v", err)
	}
}

func TestNew_TrimsOwner(t *testing.T) {
	t.Parallel()

	iv := mustNew(t, at(8, 0), at(16, 0), " emp-1 ")
	if iv.OwnerID != "emp-1" {
		t.Fatalf("expected trimmed owner, got %q", iv.OwnerID)
	}
	if iv.Duration() != 8*time.Hour {
		t.Fatalf("unexpected duration %v", iv.Duration())
	}
}

func TestHasOverlap_Scenarios(t *testing.T) {
	t.Parallel()

	a := mustNew(t, at(8, 0), at(16, 0), "emp-1")

	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{name: "partial overlap", other: mustNew(t, at(14, 0), at(22, 0), "emp-1"), want: true},
		{name: "touching end", other: mustNew(t, at(16, 0), at(22, 0), "emp-1"), want: false},
		{name: "touching start", other: mustNew(t, at(0, 0), at(8, 0), "emp-1"), want: false},
		{name: "contained", other: mustNew(t, at(9, 0), at(10, 0), "emp-1"), want: true},
		{name: "containing", other: mustNew(t, at(7, 0), at(17, 0), "emp-1"), want: true},
		{name: "other owner", other: mustNew(t, at(9, 0), at(10, 0), "emp-2"), want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasOverlap(a, []Interval{tc.other}); got != tc.want {
				t.Fatalf("HasOverlap = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasOverlap_MatchesDefinitionOnGrid(t *testing.T) {
	t.Parallel()

	// 15 分刻みの全組み合わせで定義式と一致することを確認する
	var slots []Interval
	for s := 0; s < 12; s++ {
		for e := s + 1; e <= 12; e++ {
			slots = append(slots, mustNew(t, at(8, 0).Add(time.Duration(s)*15*time.Minute), at(8, 0).Add(time.Duration(e)*15*time.Minute), "emp-1"))
		}
	}

	for _, a := range slots {
		for _, b := range slots {
			adjacentOrApart := !a.End.After(b.Start) || !b.End.After(a.Start)
			got := HasOverlap(a, []Interval{b})
			if adjacentOrApart && got {
				t.Fatalf("false positive for %v-%v vs %v-%v", a.Start, a.End, b.Start, b.End)
			}
			if !adjacentOrApart && !got {
				t.Fatalf("missed overlap for %v-%v vs %v-%v", a.Start, a.End, b.Start, b.End)
			}
		}
	}
}

func TestFirstOverlap_ReturnsFirstMatchingIndex(t *testing.T) {
	t.Parallel()

	candidate := mustNew(t, at(10, 0), at(12, 0), "emp-1")
	existing := []Interval{
		mustNew(t, at(6, 0), at(8, 0), "emp-1"),
		mustNew(t, at(11, 0), at(13, 0), "emp-2"),
		mustNew(t, at(11, 30), at(14, 0), "emp-1"),
		mustNew(t, at(9, 0), at(11, 0), "emp-1"),
	}

	idx, ok := FirstOverlap(candidate, existing)
	if !ok || idx != 2 {
		t.Fatalf("expected index 2, got %d (found=%v)", idx, ok)
	}

	if _, ok := FirstOverlap(candidate, nil); ok {
		t.Fatal("expected no overlap against empty set")
	}
}

func TestContains_HalfOpen(t *testing.T) {
	t.Parallel()

	iv := mustNew(t, at(8, 0), at(16, 0), "emp-1")
	if !iv.Contains(at(8, 0)) {
		t.Fatal("start should be contained")
	}
	if iv.Contains(at(16, 0)) {
		t.Fatal("end should not be contained")
	}
}
