package trajectory

import "math"

// Default precision window for AOCC, as in the MA-BBOB setup.
const (
	DefaultLower = 1e-8
	DefaultUpper = 1e2
)

// AOCC is the normalized area over the convergence curve: one minus the mean,
// over the whole budget, of the log-scaled best-so-far precision clipped to
// [lower, upper]. Budget left unused counts at the final best value, so a
// run without records scores 0 and a run that hits lower immediately scores 1.
func AOCC(records []Record, budget int, optimum, lower, upper float64) float64 {
	if budget <= 0 {
		return 0
	}
	logLo, logHi := math.Log10(lower), math.Log10(upper)
	transform := func(precision float64) float64 {
		if math.IsNaN(precision) || precision >= upper {
			return 1
		}
		if precision <= lower {
			return 0
		}
		return (math.Log10(precision) - logLo) / (logHi - logLo)
	}

	best := math.Inf(1)
	var area float64
	used := 0
	for _, rec := range records {
		if used >= budget {
			break
		}
		if p := rec.Y - optimum; p < best {
			best = p
		}
		area += transform(best)
		used++
	}
	area += float64(budget-used) * transform(best)
	return 1 - area/float64(budget)
}
