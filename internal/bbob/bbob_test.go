package bbob_test

import (
	"math"
	"testing"

	"github.com/signalnine/sandbench/internal/bbob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceDeterministic(t *testing.T) {
	a := bbob.NewInstance(7, 5)
	b := bbob.NewInstance(7, 5)
	assert.Equal(t, a.XOpt(), b.XOpt())
	assert.Equal(t, a.Functions(), b.Functions())

	x := []float64{1, -2, 0.5, 3, -4}
	assert.Equal(t, a.Eval(x), b.Eval(x))

	other := bbob.NewInstance(14, 5)
	assert.NotEqual(t, a.Eval(x), other.Eval(x))
}

func TestInstanceOptimumIsMinimal(t *testing.T) {
	for _, id := range []int{0, 7, 14} {
		for _, dim := range []int{1, 2, 5} {
			in := bbob.NewInstance(id, dim)
			xopt := in.XOpt()
			for _, v := range xopt {
				assert.LessOrEqual(t, math.Abs(v), 4.0)
			}
			assert.InDelta(t, in.Optimum(), in.Eval(xopt), 1e-15)

			probe := make([]float64, dim)
			for i := range probe {
				probe[i] = xopt[i] + 0.5
			}
			assert.Greater(t, in.Eval(probe), in.Optimum(), "instance %d dim %d", id, dim)
		}
	}
}

func TestInstanceSkipsFunctionsAboveDimension(t *testing.T) {
	for id := 0; id < 20; id++ {
		for _, name := range bbob.NewInstance(id, 1).Functions() {
			assert.NotContains(t, []string{"rosenbrock", "bent_cigar", "sharp_ridge"}, name)
		}
	}
}

func TestProblemBudget(t *testing.T) {
	p := bbob.NewProblem(bbob.NewInstance(0, 2), 3)
	x := []float64{0, 0}
	for i := 0; i < 3; i++ {
		p.Evaluate(x)
	}
	assert.Equal(t, 3, p.Evaluations())
	assert.False(t, p.Exhausted())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.True(t, bbob.IsBudgetExceeded(r))
		assert.True(t, p.Exhausted())
		assert.Equal(t, 3, p.Evaluations())
	}()
	p.Evaluate(x)
}

func TestProblemShortVectorPanics(t *testing.T) {
	p := bbob.NewProblem(bbob.NewInstance(0, 3), 10)
	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.False(t, bbob.IsBudgetExceeded(r))
	}()
	p.Evaluate([]float64{1})
}

func TestProblemObserversAndReset(t *testing.T) {
	p := bbob.NewProblem(bbob.NewInstance(3, 2), 10)
	var counts []int
	p.Attach(bbob.ObserverFunc(func(n int, x []float64, y float64) {
		counts = append(counts, n)
	}))
	p.Evaluate([]float64{1, 1})
	p.Evaluate([]float64{2, 2, 99}) // extra coordinates are ignored
	assert.Equal(t, []int{1, 2}, counts)
	assert.Less(t, p.Best(), math.Inf(1))

	p.Reset()
	assert.Equal(t, 0, p.Evaluations())
	assert.True(t, math.IsInf(p.Best(), 1))

	p.Detach()
	p.Evaluate([]float64{1, 1})
	assert.Equal(t, []int{1, 2}, counts)
}

func TestSuiteCachesInstances(t *testing.T) {
	s := bbob.NewSuite()
	s.Preload([]int{0, 7, 14}, []int{5})
	assert.Equal(t, 3, s.Len())
	assert.Same(t, s.Instance(7, 5), s.Instance(7, 5))

	p1 := s.Problem(7, 5, 10)
	p2 := s.Problem(7, 5, 10)
	assert.NotSame(t, p1, p2)
	assert.Same(t, p1.Instance(), p2.Instance())
}

func TestSmokeProblem(t *testing.T) {
	s := bbob.NewSuite()
	p := s.SmokeProblem(100)
	assert.Equal(t, bbob.SmokeDim, p.Dim())
	assert.Equal(t, 100, p.Budget())
	assert.Equal(t, []string{bbob.SmokeFunction}, p.Instance().Functions())
}
