package fsrs

import "math"

// Algorithm evaluates the FSRS memory model for a fixed weight vector.
type Algorithm struct {
	w      Parameters
	decay  float64
	factor float64
}

func NewAlgorithm(p Parameters) Algorithm {
	decay := -p[20]
	return Algorithm{
		w:      p,
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}
}

func (a Algorithm) Parameters() Parameters { return a.w }

// Retrievability is R(t, S) = (1 + factor*t/S)^decay.
func (a Algorithm) Retrievability(elapsedDays, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	return math.Pow(1+a.factor*elapsedDays/stability, a.decay)
}

func (a Algorithm) InitStability(r Rating) float64 {
	return clampS(a.w[r-1])
}

func (a Algorithm) InitDifficulty(r Rating) float64 {
	return clampD(a.initDifficultyRaw(r))
}

func (a Algorithm) initDifficultyRaw(r Rating) float64 {
	return a.w[4] - math.Exp(a.w[5]*float64(r-1)) + 1
}

// NextInterval converts stability into whole days at the desired retention,
// clamped to [1, maxDays].
func (a Algorithm) NextInterval(stability, desiredRetention float64, maxDays int) int {
	ivl := stability / a.factor * (math.Pow(desiredRetention, 1.0/a.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > maxDays {
		days = maxDays
	}
	return days
}

// ShortTermStability is used for reviews less than a day apart.
func (a Algorithm) ShortTermStability(stability float64, r Rating) float64 {
	inc := math.Exp(a.w[17]*(float64(r)-3+a.w[18])) * math.Pow(stability, -a.w[19])
	if r == Good || r == Easy {
		inc = math.Max(inc, 1.0)
	}
	return clampS(stability * inc)
}

// NextDifficulty applies linear damping and then mean reversion toward D0(Easy).
func (a Algorithm) NextDifficulty(difficulty float64, r Rating) float64 {
	delta := -a.w[6] * (float64(r) - 3)
	damped := difficulty + (10-difficulty)*delta/9
	return clampD(a.w[7]*a.initDifficultyRaw(Easy) + (1-a.w[7])*damped)
}

func (a Algorithm) NextRecallStability(d, s, r float64, rating Rating) float64 {
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = a.w[15]
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = a.w[16]
	}
	return clampS(s * (1 + math.Exp(a.w[8])*
		(11-d)*
		math.Pow(s, -a.w[9])*
		(math.Exp((1-r)*a.w[10])-1)*
		hardPenalty*easyBonus))
}

func (a Algorithm) NextForgetStability(d, s, r float64) float64 {
	long := a.w[11] *
		math.Pow(d, -a.w[12]) *
		(math.Pow(s+1, a.w[13]) - 1) *
		math.Exp((1-r)*a.w[14])
	short := s / math.Exp(a.w[17]*a.w[18])
	return clampS(math.Min(long, short))
}

func clampS(s float64) float64 { return math.Max(s, 0.001) }

func clampD(d float64) float64 { return math.Min(math.Max(d, 1), 10) }
