package score

import (
	"time"

	"github.com/rsummers/bidwatch/internal/match"
)

// Config holds the scoring knobs. The high-relevance threshold is
// configuration, not business law; callers bucket with it rather than a
// literal 50.
type Config struct {
	NearTermDays  int // Deadline window that earns the urgency bonus
	HighThreshold int // Score at or above which an opportunity is "high relevance"
	SetAsideBonus int // Extra points for set-aside solicitations
}

func DefaultConfig() Config {
	return Config{
		NearTermDays:  7,
		HighThreshold: 50,
		SetAsideBonus: 5,
	}
}

// Point weights for the tiered match result. An exact stock-number hit
// dominates; a class-code-only hit is worth less; keyword overlap fills
// in proportionally.
const (
	nsnPoints      = 50
	classPoints    = 20
	keywordPoints  = 20
	nearTermPoints = 10
)

// Compute turns a match result plus solicitation metadata into a 0-100
// relevance score. Pure and deterministic: the same inputs always
// produce the same score.
func Compute(m match.Result, deadline *time.Time, setAside bool, now time.Time, cfg Config) int {
	points := 0

	if m.HasNSN() {
		points += nsnPoints
	} else if m.HasClassCode() {
		points += classPoints
	}

	ratio := m.KeywordRatio
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	points += int(ratio * keywordPoints)

	if deadline != nil && cfg.NearTermDays > 0 {
		window := now.AddDate(0, 0, cfg.NearTermDays)
		if !deadline.Before(now) && !deadline.After(window) {
			points += nearTermPoints
		}
	}

	if setAside {
		points += cfg.SetAsideBonus
	}

	return clamp(points)
}

// IsHigh reports whether a score falls in the high-relevance bucket.
func (c Config) IsHigh(score int) bool {
	return score >= c.HighThreshold
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
