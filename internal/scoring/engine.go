// Package scoring converts raw vote and article deltas into dampened score
// movements and applies pending score events to member trust scores.
package scoring

import "math"

const (
	// scaleBand is the score distance over which position dampening ramps
	// from full effect to none.
	scaleBand = 40.0

	// lowBand and highBand bound the volatile middle range. Inside
	// [lowBand, highBand] the position factor is exactly 1.
	lowBand  = 40.0
	highBand = 60.0

	// maxRawDelta bounds any single event before dampening.
	maxRawDelta = 25.0

	// penaltyBoost amplifies disagreement against members above highBand.
	// Trust is easier to lose than to extend once already high.
	penaltyBoost = 0.5

	// recoveryBoost amplifies agreement for members below lowBand.
	recoveryBoost = 0.3

	// Confidence dampening: once a member has more than
	// confidenceThreshold votes, deltas shrink by confidenceSlope per
	// extra vote down to confidenceFloor.
	confidenceThreshold = 20
	confidenceSlope     = 0.01
	confidenceFloor     = 0.7

	// MinScore and MaxScore keep stored scores strictly inside (0,100).
	// Without the caps, float rounding would let a long one-sided run
	// saturate at an exact bound.
	MinScore = 0.01
	MaxScore = 99.99

	// DefaultScore seeds a member with no vote history.
	DefaultScore = 50.0
)

// AdjustDelta returns the dampened delta for one event. currentScore is the
// member's news trust score in [0,100], rawDelta the unscaled event delta and
// voteIndex the number of events already applied to this member.
//
// The function is pure. Identical inputs always produce identical output.
func AdjustDelta(currentScore, rawDelta float64, voteIndex int) float64 {
	current := math.Min(100, math.Max(0, currentScore))
	raw := math.Min(maxRawDelta, math.Max(-maxRawDelta, rawDelta))
	if raw == 0 {
		return 0
	}

	var factor float64
	if raw > 0 {
		factor = math.Min(1, (100-current)/scaleBand)
		if current < lowBand {
			factor *= 1 + recoveryBoost*(lowBand-current)/lowBand
		}
	} else {
		factor = math.Min(1, current/scaleBand)
		if current > highBand {
			factor *= 1 + penaltyBoost*(current-highBand)/scaleBand
		}
	}

	if voteIndex > confidenceThreshold {
		damp := 1 - confidenceSlope*float64(voteIndex-confidenceThreshold)
		factor *= math.Max(confidenceFloor, damp)
	}

	return raw * factor
}

// Apply runs AdjustDelta and returns the bounded new score together with the
// delta that was actually applied. The new score never crosses MinScore or
// MaxScore from the inside; degenerate starting scores outside the caps are
// left where they are rather than pulled inward.
func Apply(currentScore, rawDelta float64, voteIndex int) (newScore, appliedDelta float64) {
	adjusted := AdjustDelta(currentScore, rawDelta, voteIndex)
	next := currentScore + adjusted
	if next > MaxScore {
		next = math.Max(MaxScore, currentScore)
	}
	if next < MinScore {
		next = math.Min(MinScore, currentScore)
	}
	return next, next - currentScore
}
