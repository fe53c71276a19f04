package game

import (
	"errors"
	"math/rand"
	"testing"

	"trivia-session-service/internal/domain"
)

func TestSelectReturnsDistinctPrefix(t *testing.T) {
	s := NewSelectorWithSource(rand.NewSource(1))
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	got, err := s.Select(ids, 5)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 ids, got %d", len(got))
	}
	seen := make(map[int64]bool)
	for _, id := range got {
		if id < 1 || id > 12 || seen[id] {
			t.Fatalf("unexpected or duplicate id %d in %v", id, got)
		}
		seen[id] = true
	}
	if ids[0] != 1 || ids[11] != 12 {
		t.Fatalf("input slice was mutated: %v", ids)
	}
}

func TestSelectCapsAtBankSize(t *testing.T) {
	s := NewSelector()
	got, err := s.Select([]int64{4, 8}, 10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected whole bank, got %v", got)
	}
}

func TestSelectEmptyBank(t *testing.T) {
	s := NewSelector()
	if _, err := s.Select(nil, 3); !errors.Is(err, domain.ErrEmptyQuestionBank) {
		t.Fatalf("expected empty bank error, got %v", err)
	}
}
