package tower

import "time"

// Scoring turns attempts and elapsed time into points.
type Scoring struct {
	Base           int
	AttemptPenalty int
	Min            int
}

var DefaultScoring = Scoring{Base: 1500, AttemptPenalty: 50, Min: 200}

// Score subtracts the attempt penalty and one point per whole elapsed second
// from Base, never going below Min. Negative inputs count as zero.
func (s Scoring) Score(attempts int, elapsed time.Duration) int {
	if attempts < 0 {
		attempts = 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	score := s.Base - attempts*s.AttemptPenalty - int(elapsed/time.Second)
	if score < s.Min {
		return s.Min
	}
	return score
}

// Score uses DefaultScoring.
func Score(attempts int, elapsed time.Duration) int {
	return DefaultScoring.Score(attempts, elapsed)
}
