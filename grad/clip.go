package grad

import (
	"gonum.org/v1/gonum/floats"
)

// Clip rescales buf in place so its L2 norm does not exceed maxNorm. It
// returns the uniform scale factor applied (1.0 when no clipping occurred)
// and the norm before clipping. A buffer already within the threshold is
// left untouched.
func Clip(buf []float64, maxNorm float64) (scale, norm float64) {
	norm = floats.Norm(buf, 2)
	if norm <= maxNorm || norm == 0 {
		return 1.0, norm
	}

	scale = maxNorm / norm
	floats.Scale(scale, buf)
	return scale, norm
}
