package bbob

import (
	"math"
	"math/rand/v2"
)

const (
	// optimum location is drawn from [-optRange, optRange]^d
	optRange = 4.0
	// reference corner used to normalize each component
	refCorner = 5.0
	floorEps  = 1e-12
	scale     = 100.0
)

type component struct {
	fn       baseFunction
	weight   float64
	rotation [][]float64
	norm     float64
}

// Instance is one immutable landscape of the affine-combination family.
// It is safe for concurrent use.
type Instance struct {
	ID         int
	Dim        int
	xopt       []float64
	components []component
	optimum    float64
}

// NewInstance builds the instance deterministically from (id, dim): the same
// pair always produces the same landscape in every process.
func NewInstance(id, dim int) *Instance {
	rng := rand.New(rand.NewPCG(uint64(id), uint64(dim)))

	xopt := make([]float64, dim)
	for i := range xopt {
		xopt[i] = (rng.Float64()*2 - 1) * optRange
	}

	var eligible []baseFunction
	for _, f := range baseFunctions {
		if dim >= f.MinDim {
			eligible = append(eligible, f)
		}
	}
	n := 2 + rng.IntN(3)
	if n > len(eligible) {
		n = len(eligible)
	}
	order := rng.Perm(len(eligible))

	in := &Instance{ID: id, Dim: dim, xopt: xopt}
	var total float64
	for _, idx := range order[:n] {
		c := component{
			fn:       eligible[idx],
			weight:   0.1 + rng.Float64(),
			rotation: randomRotation(rng, dim),
		}
		total += c.weight
		in.components = append(in.components, c)
	}
	ref := make([]float64, dim)
	for i := range ref {
		ref[i] = refCorner
	}
	for i := range in.components {
		c := &in.components[i]
		c.weight /= total
		c.norm = 1
		if v := c.fn.Eval(in.transform(c, ref)); v > 0 && !math.IsInf(v, 0) {
			c.norm = v
		}
	}
	in.optimum = in.Eval(xopt)
	return in
}

// NewSingle builds an instance over one named base function with unit weight.
func NewSingle(name string, id, dim int) *Instance {
	rng := rand.New(rand.NewPCG(uint64(id), uint64(dim)^0x5eed))
	xopt := make([]float64, dim)
	for i := range xopt {
		xopt[i] = (rng.Float64()*2 - 1) * optRange
	}
	in := &Instance{ID: id, Dim: dim, xopt: xopt}
	in.components = []component{{
		fn:       lookup(name),
		weight:   1,
		rotation: randomRotation(rng, dim),
		norm:     1,
	}}
	in.optimum = in.Eval(xopt)
	return in
}

func (in *Instance) transform(c *component, x []float64) []float64 {
	z := make([]float64, in.Dim)
	for i, row := range c.rotation {
		var s float64
		for j, r := range row {
			s += r * (x[j] - in.xopt[j])
		}
		z[i] = s
	}
	return z
}

// Eval is the weighted geometric combination of the normalized components,
// scaled so that points far from the optimum land near 1e2.
func (in *Instance) Eval(x []float64) float64 {
	var logSum float64
	for i := range in.components {
		c := &in.components[i]
		v := c.fn.Eval(in.transform(c, x)) / c.norm
		logSum += c.weight * math.Log10(v+floorEps)
	}
	return scale * math.Pow(10, logSum)
}

// Optimum is the objective value at the optimum location.
func (in *Instance) Optimum() float64 { return in.optimum }

// XOpt returns a copy of the optimum location.
func (in *Instance) XOpt() []float64 {
	out := make([]float64, len(in.xopt))
	copy(out, in.xopt)
	return out
}

// Functions names the base functions mixed into the instance.
func (in *Instance) Functions() []string {
	names := make([]string, len(in.components))
	for i, c := range in.components {
		names[i] = c.fn.Name
	}
	return names
}

// randomRotation returns an orthonormal matrix from Gram-Schmidt on a
// Gaussian matrix.
func randomRotation(rng *rand.Rand, dim int) [][]float64 {
	m := make([][]float64, dim)
	for i := range m {
		m[i] = make([]float64, dim)
		for j := range m[i] {
			m[i][j] = rng.NormFloat64()
		}
	}
	for i := 0; i < dim; i++ {
		for k := 0; k < i; k++ {
			var dot float64
			for j := 0; j < dim; j++ {
				dot += m[i][j] * m[k][j]
			}
			for j := 0; j < dim; j++ {
				m[i][j] -= dot * m[k][j]
			}
		}
		var norm float64
		for j := 0; j < dim; j++ {
			norm += m[i][j] * m[i][j]
		}
		norm = math.Sqrt(norm)
		if norm < 1e-12 {
			// degenerate draw; fall back to the unit vector
			for j := range m[i] {
				m[i][j] = 0
			}
			m[i][i] = 1
			continue
		}
		for j := 0; j < dim; j++ {
			m[i][j] /= norm
		}
	}
	return m
}
