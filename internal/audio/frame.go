package audio

// buildFrame lays src (mono or stereo interleaved-by-pair samples for
// frame index t) into a (deviceChannels) wide row according to target,
// per spec §4.2 step 5 and the routing properties in spec §8 (#3, #4):
//
//   - ModeOne: column Index carries src*gain, every other column zero.
//   - ModeStereo: if the source itself is stereo, L gets the left
//     sample and R the right; if the source is mono, both L and R carry
//     src*gain.
//   - ModeAll: every column of the device carries src*gain (mono
//     duplicated to all outputs).
func buildFrame(row []float32, t Target, monoSample float32, stereoSample [2]float32, sourceIsStereo bool, gain float32) {
	for i := range row {
		row[i] = 0
	}

	switch t.Mode {
	case ModeOne:
		if t.Index >= 0 && t.Index < len(row) {
			row[t.Index] = monoSample * gain
		}
	case ModeStereo:
		left, right := monoSample, monoSample

		if sourceIsStereo {
			left, right = stereoSample[0], stereoSample[1]
		}

		if t.L >= 0 && t.L < len(row) {
			row[t.L] = left * gain
		}

		if t.R >= 0 && t.R < len(row) {
			row[t.R] = right * gain
		}
	case ModeAll:
		for i := range row {
			row[i] = monoSample * gain
		}
	}
}
