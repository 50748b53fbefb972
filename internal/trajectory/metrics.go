package trajectory

import (
	"math"

	"github.com/signalnine/sandbench/internal/config"
)

// Metric keys, grouped by family.
const (
	AvgNearestNeighborDistance = "avg_nearest_neighbor_distance"
	Dispersion                 = "dispersion"
	AvgExplorationPct          = "avg_exploration_pct"

	AvgDistanceToBest    = "avg_distance_to_best"
	IntensificationRatio = "intensification_ratio"
	AvgExploitationPct   = "avg_exploitation_pct"

	AverageConvergenceRate = "average_convergence_rate"
	AvgImprovement         = "avg_improvement"
	SuccessRate            = "success_rate"

	LongestNoImprovementStreak = "longest_no_improvement_streak"
	LastImprovementFraction    = "last_improvement_fraction"
)

// MetricNames lists all behavioural descriptors in presentation order.
var MetricNames = []string{
	AvgNearestNeighborDistance, Dispersion, AvgExplorationPct,
	AvgDistanceToBest, IntensificationRatio, AvgExploitationPct,
	AverageConvergenceRate, AvgImprovement, SuccessRate,
	LongestNoImprovementStreak, LastImprovementFraction,
}

// nearFraction of the unit-cube diagonal counts as "close to the incumbent".
const nearFraction = 0.1

// Metrics derives the behavioural descriptors of one run. It reports false
// for trajectories of one record or fewer. Coordinates are normalized to the
// unit cube by bounds (one bound per coordinate); every value is finite.
func Metrics(records []Record, bounds []config.Bound) (map[string]float64, bool) {
	n := len(records)
	if n <= 1 {
		return nil, false
	}
	pts := normalize(records, bounds)
	dim := len(bounds)
	radius := nearFraction * math.Sqrt(float64(dim))

	// best-so-far bookkeeping
	bestIdx := 0
	improvements := 0
	var improvementSum float64
	streak, longest := 0, 0
	lastImprovement := 0

	var distToBestSum float64
	explore := 0
	for i := 1; i < n; i++ {
		d := distance(pts[i], pts[bestIdx])
		distToBestSum += d
		if d > radius {
			explore++
		}
		if records[i].Y < records[bestIdx].Y {
			improvements++
			improvementSum += records[bestIdx].Y - records[i].Y
			bestIdx = i
			lastImprovement = i
			streak = 0
		} else {
			streak++
			if streak > longest {
				longest = streak
			}
		}
	}

	steps := float64(n - 1)
	m := map[string]float64{
		AvgNearestNeighborDistance: nearestNeighbor(pts),
		Dispersion:                 dispersion(pts),
		AvgExplorationPct:          100 * float64(explore) / steps,
		AvgDistanceToBest:          distToBestSum / steps,
		IntensificationRatio:       intensification(pts, pts[bestIdx], radius),
		AvgExploitationPct:         100 * float64(n-1-explore) / steps,
		AverageConvergenceRate:     convergenceRate(records[0].Y, records[bestIdx].Y, n),
		SuccessRate:                float64(improvements) / steps,
		LongestNoImprovementStreak: float64(longest),
		LastImprovementFraction:    float64(n-1-lastImprovement) / float64(n),
	}
	if improvements > 0 {
		m[AvgImprovement] = improvementSum / float64(improvements)
	} else {
		m[AvgImprovement] = 0
	}
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m[k] = 0
		}
	}
	return m, true
}

func normalize(records []Record, bounds []config.Bound) [][]float64 {
	pts := make([][]float64, len(records))
	for i, rec := range records {
		p := make([]float64, len(bounds))
		for j, b := range bounds {
			if j < len(rec.X) {
				p[j] = (rec.X[j] - b.Lo) / (b.Hi - b.Lo)
			}
		}
		pts[i] = p
	}
	return pts
}

func distance(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// nearestNeighbor is the mean distance from each point to its closest
// predecessor.
func nearestNeighbor(pts [][]float64) float64 {
	var sum float64
	for i := 1; i < len(pts); i++ {
		best := math.Inf(1)
		for j := 0; j < i; j++ {
			if d := distance(pts[i], pts[j]); d < best {
				best = d
			}
		}
		sum += best
	}
	return sum / float64(len(pts)-1)
}

// dispersion is the mean distance to the centroid.
func dispersion(pts [][]float64) float64 {
	centroid := make([]float64, len(pts[0]))
	for _, p := range pts {
		for j, v := range p {
			centroid[j] += v
		}
	}
	for j := range centroid {
		centroid[j] /= float64(len(pts))
	}
	var sum float64
	for _, p := range pts {
		sum += distance(p, centroid)
	}
	return sum / float64(len(pts))
}

func intensification(pts [][]float64, best []float64, radius float64) float64 {
	near := 0
	for _, p := range pts {
		if distance(p, best) <= radius {
			near++
		}
	}
	return float64(near) / float64(len(pts))
}

// convergenceRate is the average convergence rate 1 - (|f_best|/|f_0|)^(1/n),
// taking zero as the reference value.
func convergenceRate(first, best float64, n int) float64 {
	if first == 0 || n <= 1 {
		return 0
	}
	ratio := math.Abs(best) / math.Abs(first)
	return 1 - math.Pow(ratio, 1/float64(n-1))
}
