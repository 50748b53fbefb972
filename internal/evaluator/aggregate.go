package evaluator

import (
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/trajectory"
)

// Aggregate reduces instance runs to one result. Fitness is the mean AUC;
// each metric is averaged over the runs that produced metrics.
func Aggregate(runs []InstanceResult) result.EvaluationResult {
	if len(runs) == 0 {
		return result.Failure(result.KindRuntimeError, "no instances were evaluated")
	}
	res := result.EvaluationResult{
		PerInstanceAUCs:   make([]float64, len(runs)),
		BehavioralMetrics: map[string]float64{},
	}
	var sum float64
	described := 0
	for i, run := range runs {
		res.PerInstanceAUCs[i] = run.AUC
		sum += run.AUC
		if run.Metrics == nil {
			continue
		}
		described++
		for _, k := range trajectory.MetricNames {
			res.BehavioralMetrics[k] += run.Metrics[k]
		}
	}
	res.Fitness = sum / float64(len(runs))
	for k := range res.BehavioralMetrics {
		res.BehavioralMetrics[k] /= float64(described)
	}
	return res
}
