package result

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/signalnine/sandbench/internal/config"
)

type Candidate struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Task is the unit of dispatch to a worker.
type Task struct {
	ID        string           `json:"id"`
	Candidate Candidate        `json:"candidate"`
	Config    config.Benchmark `json:"config"`
}

// Kind classifies why an evaluation failed.
type Kind string

const (
	KindImportViolation   Kind = "import_violation"
	KindCompileError      Kind = "compile_error"
	KindSmokeTestFailure  Kind = "smoke_test_failure"
	KindRuntimeError      Kind = "runtime_error"
	KindWorkerTimeout     Kind = "worker_timeout"
	KindWorkerCrash       Kind = "worker_crash"
	KindWorkerUnavailable Kind = "worker_unavailable"
)

// EvaluationResult is what the engine hands back for one candidate.
// Fitness is -Inf exactly when Error is set.
type EvaluationResult struct {
	Fitness           float64
	Error             string
	Kind              Kind
	PerInstanceAUCs   []float64
	BehavioralMetrics map[string]float64
	Evaluations       int
	WorkerID          string
	DurationMS        int64
}

func Failure(kind Kind, msg string) EvaluationResult {
	if msg == "" {
		msg = string(kind)
	}
	return EvaluationResult{
		Fitness:           math.Inf(-1),
		Error:             msg,
		Kind:              kind,
		BehavioralMetrics: map[string]float64{},
	}
}

func Failuref(kind Kind, format string, args ...any) EvaluationResult {
	return Failure(kind, fmt.Sprintf(format, args...))
}

func (r EvaluationResult) Failed() bool {
	return r.Error != ""
}

// FitnessStd is the population standard deviation of the per-instance AUCs.
func (r EvaluationResult) FitnessStd() float64 {
	n := len(r.PerInstanceAUCs)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range r.PerInstanceAUCs {
		mean += v
	}
	mean /= float64(n)
	var ss float64
	for _, v := range r.PerInstanceAUCs {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(n))
}

// wireResult is the JSON form. JSON has no infinities, so a failed
// evaluation carries a null fitness.
type wireResult struct {
	Fitness           *float64           `json:"fitness"`
	Error             string             `json:"error,omitempty"`
	Kind              Kind               `json:"kind,omitempty"`
	PerInstanceAUCs   []float64          `json:"per_instance_aucs"`
	BehavioralMetrics map[string]float64 `json:"behavioral_metrics"`
	Evaluations       int                `json:"evaluations"`
	WorkerID          string             `json:"worker_id,omitempty"`
	DurationMS        int64              `json:"duration_ms,omitempty"`
}

func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	w := wireResult{
		Error:             r.Error,
		Kind:              r.Kind,
		PerInstanceAUCs:   r.PerInstanceAUCs,
		BehavioralMetrics: r.BehavioralMetrics,
		Evaluations:       r.Evaluations,
		WorkerID:          r.WorkerID,
		DurationMS:        r.DurationMS,
	}
	if !math.IsInf(r.Fitness, 0) && !math.IsNaN(r.Fitness) {
		f := r.Fitness
		w.Fitness = &f
	}
	if w.PerInstanceAUCs == nil {
		w.PerInstanceAUCs = []float64{}
	}
	if w.BehavioralMetrics == nil {
		w.BehavioralMetrics = map[string]float64{}
	}
	return json.Marshal(w)
}

func (r *EvaluationResult) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = EvaluationResult{
		Fitness:           math.Inf(-1),
		Error:             w.Error,
		Kind:              w.Kind,
		PerInstanceAUCs:   w.PerInstanceAUCs,
		BehavioralMetrics: w.BehavioralMetrics,
		Evaluations:       w.Evaluations,
		WorkerID:          w.WorkerID,
		DurationMS:        w.DurationMS,
	}
	if w.Fitness != nil {
		r.Fitness = *w.Fitness
	}
	if r.BehavioralMetrics == nil {
		r.BehavioralMetrics = map[string]float64{}
	}
	return nil
}

// Record is what a run directory keeps per evaluated candidate.
type Record struct {
	Name     string           `json:"name"`
	Mode     string           `json:"mode"`
	Index    int              `json:"index"`
	Result   EvaluationResult `json:"result"`
	Feedback string           `json:"feedback,omitempty"`
}
