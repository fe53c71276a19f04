package game

import "math"

// PointScale is the factor all stored points are multiplied by so that
// fractional points survive integer storage.
const PointScale = 10

// Scoring turns a correct answer and its response time into points.
type Scoring struct {
	BasePoints    int
	SpeedBonusMax int
}

// Points returns the scaled points for an answer. Incorrect answers score
// zero; correct ones get the base plus a bonus that decays linearly to zero
// at the time limit and never goes negative.
func (s Scoring) Points(isCorrect bool, elapsedSeconds, timeLimitSeconds float64) int {
	if !isCorrect {
		return 0
	}
	base := s.BasePoints * PointScale
	if timeLimitSeconds <= 0 {
		return base
	}
	fraction := math.Max(0, 1-elapsedSeconds/timeLimitSeconds)
	bonus := int(math.Round(float64(s.SpeedBonusMax*PointScale) * fraction))
	return base + bonus
}
