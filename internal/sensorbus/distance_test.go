package sensorbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFarMapping(t *testing.T) {
	b := testBus()

	rapid.Check(t, func(rt *rapid.T) {
		dist := rapid.Float64Range(-100000, 100000).Draw(rt, "dist")

		got := b.farMap(dist)

		assert.GreaterOrEqual(t, got, 0.0)

		if dist < 0 {
			assert.Equal(t, float64(Far), got)
		} else {
			assert.Equal(t, dist, got)
		}
	})
}

func TestObstructionHysteresis(t *testing.T) {
	h := newDistanceHistory()

	const block, clear, window = 800.0, 850.0, int64(5000)

	// Two near samples short of min_consecutive=3: not yet latched.
	h.append(1000, 500)
	h.append(1100, 500)
	assert.False(t, h.obstructedCheck(1100, window, block, clear, 3))

	// Third consecutive near sample latches it.
	h.append(1200, 500)
	assert.True(t, h.obstructedCheck(1200, window, block, clear, 3))

	// Stays latched on a sample between block and clear (not yet clear).
	h.append(1300, 820)
	assert.True(t, h.obstructedCheck(1300, window, block, clear, 3))

	// Clears once a sample exceeds clearMM.
	h.append(1400, 900)
	assert.False(t, h.obstructedCheck(1400, window, block, clear, 3))
}

func TestObstructionFailSafeStaysLatchedWithoutNewSamples(t *testing.T) {
	h := newDistanceHistory()

	h.append(1000, 100)
	h.append(1100, 100)
	h.append(1200, 100)
	assert.True(t, h.obstructedCheck(1200, 5000, 800, 850, 3))

	// No new sample arrives; a later check at the same (stale) window
	// must still report latched, per the fail-safe requirement.
	assert.True(t, h.obstructedCheck(9000, 5000, 800, 850, 3))
}

// TestDistanceFilterMonotonicEviction is spec §8 property #8.
func TestDistanceFilterMonotonicEviction(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newDistanceHistory()

		n := rapid.IntRange(1, 50).Draw(rt, "n")

		t1 := int64(0)
		for i := 0; i < n; i++ {
			step := rapid.Int64Range(1, 500).Draw(rt, "step")
			t1 += step
			h.append(t1, rapid.Float64Range(0, 5000).Draw(rt, "dist"))
		}

		window := rapid.Int64Range(100, 5000).Draw(rt, "window")

		h.evict(t1, window)

		t2 := t1 + rapid.Int64Range(1, 2000).Draw(rt, "advance")
		h.evict(t2, window)

		for _, s := range h.samples {
			assert.GreaterOrEqual(t, s.tHostMS, t2-window)
		}
	})
}
