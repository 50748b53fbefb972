package report_test

import (
	"strings"
	"testing"

	"github.com/signalnine/sandbench/internal/report"
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/trajectory"
)

func sampleResult() result.EvaluationResult {
	m := map[string]float64{}
	for i, k := range trajectory.MetricNames {
		m[k] = float64(i) / 10
	}
	m[trajectory.LongestNoImprovementStreak] = 42
	return result.EvaluationResult{Fitness: 0.5, PerInstanceAUCs: []float64{0.4, 0.6}, BehavioralMetrics: m}
}

func TestVanilla(t *testing.T) {
	got := report.Vanilla("RandomSearch", sampleResult())
	want := "The algorithm RandomSearch got an average Area over the convergence curve " +
		"(AOCC, 1.0 is the best) score of 0.5000 with standard deviation 0.1000."
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}

	failed := report.Vanilla("X", result.Failure(result.KindRuntimeError, "panic: boom"))
	if !strings.Contains(failed, "panic: boom") {
		t.Errorf("failure feedback lacks error: %q", failed)
	}
}

func TestBehavioral(t *testing.T) {
	got := report.Behavioral("RandomSearch", sampleResult())
	for _, k := range trajectory.MetricNames {
		if !strings.Contains(got, k+": ") {
			t.Errorf("missing %s in:\n%s", k, got)
		}
	}
	if !strings.Contains(got, "longest_no_improvement_streak: 42\n") {
		t.Errorf("streak should print as an integer:\n%s", got)
	}
	if !strings.Contains(got, "  Stagnation:") {
		t.Errorf("missing family header:\n%s", got)
	}
}

func TestFormatterFor(t *testing.T) {
	tests := []struct {
		mode    string
		want    string
		wantErr bool
	}{
		{"vanilla", "standard deviation", false},
		{"behavioral", "Behavioral profile:", false},
		{"dispersion", "Behavioral note: dispersion = 0.1000", false},
		{"nonsense", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			f, err := report.FormatterFor(tt.mode)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatterFor: %v", err)
			}
			if got := f("A", sampleResult()); !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
