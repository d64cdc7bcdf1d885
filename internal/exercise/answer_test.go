package exercise

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "el gato", NormalizeAnswer("  El   GATO\t"))
	assert.Equal(t, "", NormalizeAnswer("   "))
}

func TestWordAccuracy(t *testing.T) {
	cases := []struct {
		want, got string
		score     float64
	}{
		{"The cat sat on the mat.", "the cat sat on the mat", 1},
		{"the cat sat on the mat", "the cat on the mat", 5.0 / 6.0},
		{"the cat sat", "a dog ran", 0},
		{"the cat sat", "the cat sat down today", 3.0 / 5.0},
		{"", "", 1},
		{"don't stop", "Don't STOP!", 1},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.score, WordAccuracy(tc.want, tc.got), 1e-9, "%q vs %q", tc.want, tc.got)
	}
}
