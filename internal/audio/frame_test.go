package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMonoRouting is spec §8 property #3: a mono target at index k on a
// device with C channels carries src*gain at column k and zero
// elsewhere.
func TestMonoRouting(t *testing.T) {
	row := make([]float32, 8)
	buildFrame(row, Target{Mode: ModeOne, Index: 3}, 0.5, [2]float32{}, false, 2.0)

	for i, v := range row {
		if i == 3 {
			assert.InDelta(t, 1.0, v, 1e-6)
		} else {
			assert.Zero(t, v)
		}
	}
}

// TestStereoRoutingFromMono is spec §8 property #4: a mono source
// routed to a stereo pair duplicates onto both L and R.
func TestStereoRoutingFromMono(t *testing.T) {
	row := make([]float32, 4)
	buildFrame(row, Target{Mode: ModeStereo, L: 0, R: 1}, 0.25, [2]float32{}, false, 1.0)

	assert.InDelta(t, 0.25, row[0], 1e-6)
	assert.InDelta(t, 0.25, row[1], 1e-6)
	assert.Zero(t, row[2])
	assert.Zero(t, row[3])
}

// TestStereoRoutingFromStereo is spec §8 property #4's stereo-source
// branch: L and R carry the distinct channel samples.
func TestStereoRoutingFromStereo(t *testing.T) {
	row := make([]float32, 2)
	buildFrame(row, Target{Mode: ModeStereo, L: 0, R: 1}, 0, [2]float32{0.1, 0.9}, true, 1.0)

	assert.InDelta(t, 0.1, row[0], 1e-6)
	assert.InDelta(t, 0.9, row[1], 1e-6)
}

func TestAllRouting(t *testing.T) {
	row := make([]float32, 6)
	buildFrame(row, Target{Mode: ModeAll}, 0.4, [2]float32{}, false, 1.0)

	for _, v := range row {
		assert.InDelta(t, 0.4, v, 1e-6)
	}
}
