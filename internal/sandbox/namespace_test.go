package sandbox_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/signalnine/sandbench/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowed = []string{"math", "math/rand", "math/rand/v2", "sort"}

const randomSearch = `package main

import (
	"math"
	"math/rand"
)

type RandomSearch struct {
	budget, dim int
	best        float64
}

func NewRandomSearch(budget, dim int) *RandomSearch {
	return &RandomSearch{budget: budget, dim: dim, best: math.Inf(1)}
}

func (r *RandomSearch) Optimize(f func([]float64) float64) {
	for i := 0; i < r.budget; i++ {
		x := make([]float64, r.dim)
		for j := range x {
			x[j] = rand.Float64()*10 - 5
		}
		if y := f(x); y < r.best {
			r.best = y
		}
	}
}
`

func TestPrepareSymbols(t *testing.T) {
	ns, err := sandbox.Prepare(randomSearch, sandbox.Options{Allowed: allowed})
	require.NoError(t, err)
	assert.Equal(t, []string{"NewRandomSearch", "RandomSearch"}, ns.Symbols())
}

func TestPrepareRejectsImports(t *testing.T) {
	tests := []struct {
		name string
		src  string
		path string
		line int
	}{
		{"os", "package x\n\nimport \"os\"\n\nfunc NewA(b, d int) int { return 0 }\n", "os", 3},
		{"grouped", "package x\n\nimport (\n\t\"math\"\n\t\"net/http\"\n)\n", "net/http", 5},
		{"unsafe", "package x\nimport \"unsafe\"\n", "unsafe", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sandbox.Prepare(tt.src, sandbox.Options{Allowed: allowed})
			var iv *sandbox.ImportViolation
			require.True(t, errors.As(err, &iv), "got %v", err)
			assert.Equal(t, tt.path, iv.Path)
			assert.Equal(t, tt.line, iv.Line)
		})
	}
}

func TestPrepareCompileErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":    "package x\n\nfunc NewA(b, d int {\n",
		"undefined": "package x\n\nfunc NewA(b, d int) int { return missing }\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := sandbox.Prepare(src, sandbox.Options{Allowed: allowed})
			var ce *sandbox.CompileError
			assert.True(t, errors.As(err, &ce), "got %v", err)
		})
	}
}

func TestPrepareWithoutPackageClause(t *testing.T) {
	src := "import \"math\"\n\ntype A struct{}\n\nfunc NewA(b, d int) *A { return &A{} }\n\nfunc (a *A) Optimize(f func([]float64) float64) { f([]float64{math.Pi}) }\n"
	ns, err := sandbox.Prepare(src, sandbox.Options{Allowed: allowed})
	require.NoError(t, err)
	run, err := ns.Factory("A")
	require.NoError(t, err)

	var got []float64
	run(10, 1, func(x []float64) float64 {
		got = append(got, x...)
		return 0
	})
	assert.InDelta(t, 3.14159, got[0], 1e-4)
}

func TestFactoryRunsOptimize(t *testing.T) {
	ns, err := sandbox.Prepare(randomSearch, sandbox.Options{Allowed: allowed})
	require.NoError(t, err)
	run, err := ns.Factory("RandomSearch")
	require.NoError(t, err)

	calls := 0
	run(25, 3, func(x []float64) float64 {
		calls++
		assert.Len(t, x, 3)
		for _, v := range x {
			assert.True(t, v >= -5 && v <= 5)
		}
		return x[0] * x[0]
	})
	assert.Equal(t, 25, calls)
}

func TestFactoryBindsMinimalCandidate(t *testing.T) {
	src := "package x\n\ntype A struct{}\n\nfunc NewA(b, d int) *A { return &A{} }\n\nfunc (a *A) Optimize(f func([]float64) float64) { f(make([]float64, 2)) }\n"
	ns, err := sandbox.Prepare(src, sandbox.Options{Allowed: allowed})
	require.NoError(t, err)
	run, err := ns.Factory("A")
	require.NoError(t, err)
	require.NotNil(t, run)

	calls := 0
	run(1, 2, func(x []float64) float64 {
		calls++
		return 0
	})
	assert.Equal(t, 1, calls)

	again, err := ns.Factory("A")
	require.NoError(t, err, "binding twice must reuse the adapter")
	again(1, 2, func([]float64) float64 { calls++; return 0 })
	assert.Equal(t, 2, calls)
}

func TestFactoryMissingConstructor(t *testing.T) {
	ns, err := sandbox.Prepare(randomSearch, sandbox.Options{Allowed: allowed})
	require.NoError(t, err)
	_, err = ns.Factory("Nope")
	assert.Error(t, err)
	_, err = ns.Factory("bad name")
	assert.Error(t, err)
}

func TestReseedIsDeterministic(t *testing.T) {
	ns, err := sandbox.Prepare(randomSearch, sandbox.Options{Allowed: allowed})
	require.NoError(t, err)
	run, err := ns.Factory("RandomSearch")
	require.NoError(t, err)

	sample := func(seed int64) []float64 {
		ns.Reseed(seed)
		var xs []float64
		run(5, 2, func(x []float64) float64 {
			xs = append(xs, x...)
			return 0
		})
		return xs
	}
	a, b := sample(42), sample(42)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, sample(43))
}

func TestOutputIsCaptured(t *testing.T) {
	src := "package x\n\ntype A struct{}\n\nfunc NewA(b, d int) *A { println(\"hello\"); return &A{} }\n\nfunc (a *A) Optimize(f func([]float64) float64) {}\n"
	var buf bytes.Buffer
	ns, err := sandbox.Prepare(src, sandbox.Options{Allowed: allowed, Output: &buf})
	require.NoError(t, err)
	run, err := ns.Factory("A")
	require.NoError(t, err)
	run(1, 1, func([]float64) float64 { return 0 })
	assert.Contains(t, buf.String(), "hello")
}

func TestPanicsPropagate(t *testing.T) {
	ns, err := sandbox.Prepare(randomSearch, sandbox.Options{Allowed: allowed})
	require.NoError(t, err)
	run, err := ns.Factory("RandomSearch")
	require.NoError(t, err)

	sentinel := errors.New("stop")
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok, "panic value %T", r)
		assert.ErrorIs(t, err, sentinel)
	}()
	run(10, 2, func([]float64) float64 { panic(sentinel) })
}

func TestInferName(t *testing.T) {
	name, err := sandbox.InferName(randomSearch)
	require.NoError(t, err)
	assert.Equal(t, "RandomSearch", name)

	_, err = sandbox.InferName("package x\n\nfunc helper() {}\n")
	assert.ErrorIs(t, err, sandbox.ErrNoConstructor)
}
