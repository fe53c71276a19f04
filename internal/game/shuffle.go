package game

import (
	"strconv"
	"unicode/utf16"

	"trivia-session-service/internal/domain"
)

// Permutation maps display positions to canonical answer indices:
// p[display] = original.
type Permutation [domain.AnswerCount]int

// PermutationFor derives the answer order shown for a question within a
// session. The result depends only on (questionID, sessionID), so every
// viewer and every later results view reconstructs the same order without
// storing it.
//
// The seed is a djb2 hash of "<questionID>:<sessionID>" over UTF-16 code
// units and the generator is mulberry32, which keeps the sequence
// reproducible outside Go.
func PermutationFor(questionID int64, sessionID string) Permutation {
	next := mulberry32(seedFor(questionID, sessionID))

	p := Permutation{0, 1, 2, 3}
	for i := len(p) - 1; i > 0; i-- {
		j := int(next() * float64(i+1))
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// ToDisplayOrder reorders canonical answers into display order.
func (p Permutation) ToDisplayOrder(answers [domain.AnswerCount]string) []string {
	out := make([]string, len(p))
	for display, original := range p {
		out[display] = answers[original]
	}
	return out
}

// DisplayIndexOf returns the display position of a canonical index, or -1.
func (p Permutation) DisplayIndexOf(original int) int {
	for display, o := range p {
		if o == original {
			return display
		}
	}
	return -1
}

// OriginalIndexOf returns the canonical index shown at a display position, or -1.
func (p Permutation) OriginalIndexOf(display int) int {
	if display < 0 || display >= len(p) {
		return -1
	}
	return p[display]
}

func seedFor(questionID int64, sessionID string) uint32 {
	key := strconv.FormatInt(questionID, 10) + ":" + sessionID
	hash := uint32(5381)
	for _, unit := range utf16.Encode([]rune(key)) {
		hash = hash<<5 + hash + uint32(unit)
	}
	return hash
}

// mulberry32 returns a generator of floats in [0, 1).
func mulberry32(seed uint32) func() float64 {
	state := seed
	return func() float64 {
		state += 0x6d2b79f5
		t := (state ^ state>>15) * (1 | state)
		t = (t + (t^t>>7)*(61|t)) ^ t
		return float64(t^t>>14) / 4294967296
	}
}
