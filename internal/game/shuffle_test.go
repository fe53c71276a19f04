package game

import (
	"fmt"
	"testing"
)

func TestPermutationForIsDeterministic(t *testing.T) {
	first := PermutationFor(7, "session-1")
	for i := 0; i < 10; i++ {
		if got := PermutationFor(7, "session-1"); got != first {
			t.Fatalf("expected %v on call %d, got %v", first, i, got)
		}
	}
}

func TestPermutationForGoldenValues(t *testing.T) {
	// Pinned so that replay tooling outside Go can rely on the exact order.
	cases := []struct {
		questionID int64
		sessionID  string
		want       Permutation
	}{
		{1, "abc", Permutation{3, 2, 1, 0}},
		{7, "session-1", Permutation{2, 1, 0, 3}},
		{42, "room-42", Permutation{3, 0, 2, 1}},
		{3, "s3", Permutation{0, 3, 2, 1}},
		{5, "00000000-0000-0000-0000-000000000001", Permutation{2, 3, 1, 0}},
	}
	for _, tc := range cases {
		if got := PermutationFor(tc.questionID, tc.sessionID); got != tc.want {
			t.Fatalf("PermutationFor(%d, %q) = %v, want %v", tc.questionID, tc.sessionID, got, tc.want)
		}
	}
}

func TestPermutationForVariesAcrossSessions(t *testing.T) {
	seen := make(map[Permutation]int)
	for i := 0; i < 200; i++ {
		seen[PermutationFor(1, fmt.Sprintf("session-%d", i))]++
	}
	if len(seen) < 20 {
		t.Fatalf("expected most of the 24 permutations across sessions, got %d", len(seen))
	}
	for p, n := range seen {
		if n > 40 {
			t.Fatalf("permutation %v appeared %d/200 times", p, n)
		}
	}
}

func TestPermutationIsValid(t *testing.T) {
	for q := int64(1); q <= 100; q++ {
		p := PermutationFor(q, "sess")
		var hit [4]bool
		for _, v := range p {
			if v < 0 || v > 3 || hit[v] {
				t.Fatalf("invalid permutation %v", p)
			}
			hit[v] = true
		}
	}
}

func TestIndexMappingRoundTrip(t *testing.T) {
	for q := int64(1); q <= 50; q++ {
		p := PermutationFor(q, "round-trip")
		for i := 0; i < 4; i++ {
			if got := p.OriginalIndexOf(p.DisplayIndexOf(i)); got != i {
				t.Fatalf("perm %v: round trip of %d gave %d", p, i, got)
			}
			if got := p.DisplayIndexOf(p.OriginalIndexOf(i)); got != i {
				t.Fatalf("perm %v: inverse round trip of %d gave %d", p, i, got)
			}
		}
	}
}

func TestToDisplayOrder(t *testing.T) {
	p := Permutation{2, 0, 3, 1}
	got := p.ToDisplayOrder([4]string{"a", "b", "c", "d"})
	want := []string{"c", "a", "d", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if p.DisplayIndexOf(0) != 1 {
		t.Fatalf("expected original 0 at display 1, got %d", p.DisplayIndexOf(0))
	}
	if p.OriginalIndexOf(4) != -1 || p.DisplayIndexOf(9) != -1 {
		t.Fatalf("expected -1 for out of range indices")
	}
}
