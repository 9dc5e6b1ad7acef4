package referral

import "strings"

const (
	barFilled = "🟩"
	barEmpty  = "⬜"
)

// Progress is a user's standing against the threshold.
type Progress struct {
	Count     int
	Threshold int
}

// Eligible reports whether the reward is unlocked.
func (p Progress) Eligible() bool {
	return p.Threshold > 0 && p.Count >= p.Threshold
}

// Filled is the number of filled cells, capped at the threshold.
func (p Progress) Filled() int {
	switch {
	case p.Count < 0:
		return 0
	case p.Count > p.Threshold:
		return p.Threshold
	default:
		return p.Count
	}
}

// Bar renders one cell per required referral.
func (p Progress) Bar() string {
	if p.Threshold <= 0 {
		return ""
	}
	filled := p.Filled()
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, p.Threshold-filled)
}
