package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomSeeded(t *testing.T) {
	a, b := NewRandom(7), NewRandom(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
		assert.Equal(t, a.IntN(100), b.IntN(100))
	}
	a.Seed(1)
	b.Seed(1)
	assert.Equal(t, a.Perm(8), b.Perm(8))
}

func TestRandomShuffleIsPermutation(t *testing.T) {
	r := NewRandom(3)
	xs := []int{0, 1, 2, 3, 4, 5}
	r.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, xs)
}

func TestOverridesCoverBothVersions(t *testing.T) {
	r := NewRandom(0)
	v1 := r.overrides("v1")
	assert.Contains(t, v1, "Intn")
	assert.Contains(t, v1, "Seed")
	assert.NotContains(t, v1, "IntN")

	v2 := r.overrides("v2")
	assert.Contains(t, v2, "IntN")
	assert.NotContains(t, v2, "Seed")
}
