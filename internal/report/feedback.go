package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/trajectory"
)

// Formatter turns an evaluation into the text handed back to whoever
// proposed the candidate.
type Formatter func(name string, res result.EvaluationResult) string

var families = []struct {
	title string
	keys  []string
}{
	{"Exploration & diversity", []string{trajectory.AvgNearestNeighborDistance, trajectory.Dispersion, trajectory.AvgExplorationPct}},
	{"Exploitation", []string{trajectory.AvgDistanceToBest, trajectory.IntensificationRatio, trajectory.AvgExploitationPct}},
	{"Convergence", []string{trajectory.AverageConvergenceRate, trajectory.AvgImprovement, trajectory.SuccessRate}},
	{"Stagnation", []string{trajectory.LongestNoImprovementStreak, trajectory.LastImprovementFraction}},
}

// Vanilla reports the AOCC only.
func Vanilla(name string, res result.EvaluationResult) string {
	if res.Failed() {
		return fmt.Sprintf("The algorithm %s failed to evaluate: %s", name, res.Error)
	}
	return fmt.Sprintf("The algorithm %s got an average Area over the convergence curve "+
		"(AOCC, 1.0 is the best) score of %0.4f with standard deviation %0.4f.",
		name, res.Fitness, res.FitnessStd())
}

// Behavioral appends the full behavioural profile to Vanilla.
func Behavioral(name string, res result.EvaluationResult) string {
	base := Vanilla(name, res)
	if res.Failed() || len(res.BehavioralMetrics) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nBehavioral profile:")
	for _, fam := range families {
		fmt.Fprintf(&b, "\n  %s:", fam.title)
		for _, k := range fam.keys {
			fmt.Fprintf(&b, "\n    %s: %s", k, formatMetric(k, res.BehavioralMetrics[k]))
		}
	}
	return b.String()
}

// SingleFeature appends one metric to Vanilla.
func SingleFeature(key string) Formatter {
	return func(name string, res result.EvaluationResult) string {
		base := Vanilla(name, res)
		v, ok := res.BehavioralMetrics[key]
		if res.Failed() || !ok {
			return base
		}
		return fmt.Sprintf("%s\n\nBehavioral note: %s = %s", base, key, formatMetric(key, v))
	}
}

// FormatterFor resolves "vanilla", "behavioral" or a metric name.
func FormatterFor(mode string) (Formatter, error) {
	switch mode {
	case "", "vanilla":
		return Vanilla, nil
	case "behavioral":
		return Behavioral, nil
	}
	if slices.Contains(trajectory.MetricNames, mode) {
		return SingleFeature(mode), nil
	}
	return nil, fmt.Errorf("unknown feedback mode %q (want vanilla, behavioral or a metric name)", mode)
}

func formatMetric(key string, v float64) string {
	if key == trajectory.LongestNoImprovementStreak {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.4f", v)
}
