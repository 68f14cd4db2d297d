package scoring

import (
	"math"
	"testing"
)

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAdjustDelta_MidRangeGetsFullDelta(t *testing.T) {
	t.Parallel()

	for _, current := range []float64{40, 45, 50, 55, 60} {
		for _, raw := range []float64{10, -10, 25, -25} {
			if got := AdjustDelta(current, raw, 0); got != raw {
				t.Fatalf("AdjustDelta(%v, %v, 0) = %v, want full delta", current, raw, got)
			}
		}
	}
}

func TestAdjustDelta_MidRangeNeverDampedBelowFloor(t *testing.T) {
	t.Parallel()

	for _, voteIndex := range []int{0, 21, 50, 100, 1000} {
		got := math.Abs(AdjustDelta(50, 10, voteIndex))
		if got < 10*confidenceFloor-1e-9 {
			t.Fatalf("mid-range delta at voteIndex %d fell to %v, below the confidence floor", voteIndex, got)
		}
	}
}

func TestAdjustDelta_DiminishesTowardCeiling(t *testing.T) {
	t.Parallel()

	approx(t, AdjustDelta(90, 10, 0), 2.5)
	approx(t, AdjustDelta(99, 10, 0), 0.25)

	prev := AdjustDelta(60, 10, 0)
	for _, current := range []float64{70, 80, 90, 99} {
		got := AdjustDelta(current, 10, 0)
		if got >= prev {
			t.Fatalf("positive delta must shrink as score rises: %v at %v, previous %v", got, current, prev)
		}
		prev = got
	}
}

func TestAdjustDelta_DiminishesTowardFloor(t *testing.T) {
	t.Parallel()

	approx(t, AdjustDelta(10, -10, 0), -2.5)
	approx(t, AdjustDelta(1, -10, 0), -0.25)
}

func TestAdjustDelta_AsymmetricAtHighEnd(t *testing.T) {
	t.Parallel()

	gain := AdjustDelta(90, 10, 0)
	loss := AdjustDelta(90, -10, 0)

	approx(t, gain, 2.5)
	approx(t, loss, -13.75)
	if math.Abs(loss) <= math.Abs(gain) {
		t.Fatalf("disagreement at the top must outweigh agreement: gain %v, loss %v", gain, loss)
	}
	if math.Abs(loss) <= 10 {
		t.Fatalf("disagreement at the top must be amplified past the raw delta, got %v", loss)
	}
}

func TestAdjustDelta_RecoveryBoostAtLowEnd(t *testing.T) {
	t.Parallel()

	gain := AdjustDelta(10, 10, 0)
	loss := AdjustDelta(10, -10, 0)

	approx(t, gain, 12.25)
	approx(t, loss, -2.5)
	if gain <= 10 {
		t.Fatalf("agreement at the bottom must be amplified past the raw delta, got %v", gain)
	}
}

func TestAdjustDelta_ConfidenceDampening(t *testing.T) {
	t.Parallel()

	if got := AdjustDelta(50, 10, confidenceThreshold); got != 10 {
		t.Fatalf("no dampening at the threshold itself, got %v", got)
	}
	approx(t, AdjustDelta(50, 10, 21), 9.9)
	approx(t, AdjustDelta(50, 10, 1000), 7)

	// Dampening applies at every position, including near the bounds.
	undamped := AdjustDelta(90, -10, 0)
	damped := AdjustDelta(90, -10, 1000)
	approx(t, damped, undamped*confidenceFloor)
}

func TestAdjustDelta_ClampsRawDelta(t *testing.T) {
	t.Parallel()

	approx(t, AdjustDelta(50, 100, 0), maxRawDelta)
	approx(t, AdjustDelta(50, -100, 0), -maxRawDelta)
	if got := AdjustDelta(50, 0, 0); got != 0 {
		t.Fatalf("zero raw delta must stay zero, got %v", got)
	}
}

func TestAdjustDelta_Deterministic(t *testing.T) {
	t.Parallel()

	for current := 0.0; current <= 100; current += 12.5 {
		for _, raw := range []float64{-25, -7.3, 0, 7.3, 25} {
			for _, voteIndex := range []int{0, 19, 20, 21, 77} {
				first := AdjustDelta(current, raw, voteIndex)
				second := AdjustDelta(current, raw, voteIndex)
				if first != second {
					t.Fatalf("AdjustDelta(%v, %v, %d) not deterministic: %v vs %v", current, raw, voteIndex, first, second)
				}
			}
		}
	}
}

func TestApply_NeverCrossesBounds(t *testing.T) {
	t.Parallel()

	currents := []float64{0, MinScore, 5, 25, 40, 50, 60, 75, 90, MaxScore, 100}
	raws := []float64{-25, -10, -1, 0, 1, 10, 25}
	voteIndexes := []int{0, 20, 21, 60, 500}

	for _, current := range currents {
		for _, raw := range raws {
			for _, voteIndex := range voteIndexes {
				next, applied := Apply(current, raw, voteIndex)
				if next < 0 || next > 100 {
					t.Fatalf("Apply(%v, %v, %d) left [0,100]: %v", current, raw, voteIndex, next)
				}
				if current >= MinScore && current <= MaxScore && (next < MinScore || next > MaxScore) {
					t.Fatalf("Apply(%v, %v, %d) crossed a cap from inside: %v", current, raw, voteIndex, next)
				}
				if raw > 0 && applied < 0 {
					t.Fatalf("positive raw delta must never move the score down, got %v", applied)
				}
				if raw < 0 && applied > 0 {
					t.Fatalf("negative raw delta must never move the score up, got %v", applied)
				}
				approx(t, current+applied, next)
			}
		}
	}
}

func TestApply_ReportsActualMovement(t *testing.T) {
	t.Parallel()

	next, applied := Apply(50, 10, 0)
	approx(t, next, 60)
	approx(t, applied, 10)

	next, applied = Apply(90, -10, 0)
	approx(t, next, 76.25)
	approx(t, applied, -13.75)
}

func TestApply_LongRunOfAgreementNeverSaturates(t *testing.T) {
	t.Parallel()

	score := DefaultScore
	for i := 0; i < 100; i++ {
		next, _ := Apply(score, 10, i)
		if next < score {
			t.Fatalf("iteration %d: score fell from %v to %v under pure agreement", i, score, next)
		}
		if next >= 100 {
			t.Fatalf("iteration %d: score saturated at %v", i, next)
		}
		score = next
	}
	if score < 95 {
		t.Fatalf("100 agreements should push the score high, got %v", score)
	}
}

func TestApply_LongRunOfDisagreementNeverSaturates(t *testing.T) {
	t.Parallel()

	score := DefaultScore
	for i := 0; i < 100; i++ {
		next, _ := Apply(score, -10, i)
		if next > score {
			t.Fatalf("iteration %d: score rose from %v to %v under pure disagreement", i, score, next)
		}
		if next <= 0 {
			t.Fatalf("iteration %d: score saturated at %v", i, next)
		}
		score = next
	}
	if score > 5 {
		t.Fatalf("100 disagreements should push the score low, got %v", score)
	}
}
