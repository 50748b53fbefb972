package bbob

import "math"

// baseFunction is a BBOB-style separable or rotated building block. Every
// function is non-negative with its minimum 0 at the origin of z.
type baseFunction struct {
	Name   string
	MinDim int
	Eval   func(z []float64) float64
}

var baseFunctions = []baseFunction{
	{Name: "sphere", MinDim: 1, Eval: sphere},
	{Name: "ellipsoid", MinDim: 1, Eval: ellipsoid},
	{Name: "rastrigin", MinDim: 1, Eval: rastrigin},
	{Name: "step_ellipsoid", MinDim: 1, Eval: stepEllipsoid},
	{Name: "rosenbrock", MinDim: 2, Eval: rosenbrock},
	{Name: "discus", MinDim: 1, Eval: discus},
	{Name: "bent_cigar", MinDim: 2, Eval: bentCigar},
	{Name: "sharp_ridge", MinDim: 2, Eval: sharpRidge},
	{Name: "different_powers", MinDim: 1, Eval: differentPowers},
	{Name: "griewank", MinDim: 1, Eval: griewank},
}

func lookup(name string) baseFunction {
	for _, f := range baseFunctions {
		if f.Name == name {
			return f
		}
	}
	panic("bbob: unknown base function " + name)
}

// conditioning returns base^(i/(d-1)), or 1 in one dimension.
func conditioning(base float64, i, d int) float64 {
	if d == 1 {
		return 1
	}
	return math.Pow(base, float64(i)/float64(d-1))
}

func sphere(z []float64) float64 {
	var s float64
	for _, v := range z {
		s += v * v
	}
	return s
}

func ellipsoid(z []float64) float64 {
	var s float64
	for i, v := range z {
		s += conditioning(1e6, i, len(z)) * v * v
	}
	return s
}

func rastrigin(z []float64) float64 {
	var s float64
	for _, v := range z {
		s += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return s + 10*float64(len(z))
}

func stepEllipsoid(z []float64) float64 {
	var s float64
	for i, v := range z {
		r := math.Floor(v + 0.5)
		s += conditioning(1e2, i, len(z)) * r * r
	}
	// the small sphere term keeps the plateau around the optimum from being flat
	return s + 1e-4*sphere(z)
}

func rosenbrock(z []float64) float64 {
	var s float64
	for i := 0; i < len(z)-1; i++ {
		a := z[i] + 1
		b := z[i+1] + 1
		s += 100*(a*a-b)*(a*a-b) + (a-1)*(a-1)
	}
	return s
}

func discus(z []float64) float64 {
	s := 1e6 * z[0] * z[0]
	for _, v := range z[1:] {
		s += v * v
	}
	return s
}

func bentCigar(z []float64) float64 {
	s := z[0] * z[0]
	for _, v := range z[1:] {
		s += 1e6 * v * v
	}
	return s
}

func sharpRidge(z []float64) float64 {
	var rest float64
	for _, v := range z[1:] {
		rest += v * v
	}
	return z[0]*z[0] + 100*math.Sqrt(rest)
}

func differentPowers(z []float64) float64 {
	var s float64
	for i, v := range z {
		exp := 2.0
		if len(z) > 1 {
			exp += 4 * float64(i) / float64(len(z)-1)
		}
		s += math.Pow(math.Abs(v), exp)
	}
	return math.Sqrt(s)
}

func griewank(z []float64) float64 {
	sum := 0.0
	prod := 1.0
	for i, v := range z {
		sum += v * v / 4000
		prod *= math.Cos(v / math.Sqrt(float64(i+1)))
	}
	return 1 + sum - prod
}
