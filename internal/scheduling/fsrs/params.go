package fsrs

import (
	"errors"
	"fmt"
)

const NumParameters = 21

type Parameters [NumParameters]float64

// DefaultParameters are the FSRS-6 defaults.
var DefaultParameters = Parameters{
	0.212, 1.2931, 2.3065, 8.2956,
	6.4133, 0.8334, 3.0194, 0.001,
	1.8722, 0.1666, 0.796, 1.4835,
	0.0614, 0.2629, 1.6483, 0.6014,
	1.8729, 0.5425, 0.0912, 0.0658,
	0.1542,
}

var LowerBounds = Parameters{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.001,
	0.0, 0.0, 0.001, 0.001,
	0.001, 0.001, 0.0, 0.0,
	1.0, 0.0, 0.0, 0.0,
	0.1,
}

var UpperBounds = Parameters{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5, 5.0,
	0.25, 0.9, 4.0, 1.0,
	6.0, 2.0, 2.0, 0.8,
	0.8,
}

var ErrInvalidParameters = errors.New("fsrs: invalid parameters")

func (p Parameters) Validate() error {
	for i := 0; i < NumParameters; i++ {
		if p[i] < LowerBounds[i] || p[i] > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidParameters, i, p[i], LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// Clamp returns p with every weight pulled into its bounds.
func (p Parameters) Clamp() Parameters {
	for i := 0; i < NumParameters; i++ {
		if p[i] < LowerBounds[i] {
			p[i] = LowerBounds[i]
		}
		if p[i] > UpperBounds[i] {
			p[i] = UpperBounds[i]
		}
	}
	return p
}

// ParametersFromSlice converts a stored weight list. Anything that is not
// exactly 21 in-bounds weights is rejected.
func ParametersFromSlice(w []float64) (Parameters, error) {
	var p Parameters
	if len(w) != NumParameters {
		return p, fmt.Errorf("%w: want %d weights, got %d", ErrInvalidParameters, NumParameters, len(w))
	}
	copy(p[:], w)
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

func (p Parameters) Slice() []float64 {
	out := make([]float64, NumParameters)
	copy(out, p[:])
	return out
}
