package audio

// resampleLinear resamples src (mono, srcRate Hz) to dstRate Hz using
// linear interpolation between sample points, per spec §4.2 step 3.
func resampleLinear(src []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(src) == 0 {
		out := make([]float32, len(src))
		copy(out, src)

		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(src)) / ratio)
	out := make([]float32, outLen)

	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		i0 := int(srcPos)
		frac := srcPos - float64(i0)

		if i0 >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}

		s0 := src[i0]
		s1 := src[i0+1]
		out[i] = s0 + float32(frac)*(s1-s0)
	}

	return out
}

// resampleLinearStereo resamples an interleaved-pair stereo source the
// same way, channel by channel.
func resampleLinearStereo(left, right []float32, srcRate, dstRate int) (l, r []float32) {
	return resampleLinear(left, srcRate, dstRate), resampleLinear(right, srcRate, dstRate)
}
