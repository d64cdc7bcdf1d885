package optimizer

import (
	"math"

	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
)

// adam is the Adam update rule with bias correction.
type adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	m, v         fsrs.Parameters
	step         int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
}

func (a *adam) update(params, grads fsrs.Parameters) fsrs.Parameters {
	a.step++
	for i := 0; i < fsrs.NumParameters; i++ {
		g := grads[i]
		if g == 0 {
			continue
		}
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		mHat := a.m[i] / (1 - math.Pow(a.beta1, float64(a.step)))
		vHat := a.v[i] / (1 - math.Pow(a.beta2, float64(a.step)))
		params[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
	return params
}

// cosineAnnealing: lr_t = 0.5 * lr_max * (1 + cos(pi * t / T)).
type cosineAnnealing struct {
	lrMax float64
	tMax  int
	t     int
}

func (ca *cosineAnnealing) lr() float64 {
	if ca.tMax <= 0 {
		return ca.lrMax
	}
	return 0.5 * ca.lrMax * (1 + math.Cos(math.Pi*float64(ca.t)/float64(ca.tMax)))
}

func (ca *cosineAnnealing) advance() { ca.t++ }
