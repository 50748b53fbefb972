package runner_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/runner"
)

type fakeExecutor struct {
	mu    sync.Mutex
	tasks []result.Task
}

func (f *fakeExecutor) Submit(_ context.Context, task result.Task) result.EvaluationResult {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()
	if task.Candidate.Name == "Bad" {
		return result.Failure(result.KindCompileError, "compile error: nope")
	}
	return result.EvaluationResult{Fitness: 0.3, PerInstanceAUCs: []float64{0.3}, BehavioralMetrics: map[string]float64{}}
}

func (f *fakeExecutor) Close() error { return nil }

func TestExitReason(t *testing.T) {
	tests := []struct {
		kind result.Kind
		want string
	}{
		{"", "completed"},
		{result.KindWorkerTimeout, "timeout"},
		{result.KindWorkerCrash, "crashed"},
		{result.KindWorkerUnavailable, "unavailable"},
		{result.KindCompileError, "rejected"},
		{result.KindRuntimeError, "rejected"},
	}
	for _, tt := range tests {
		res := result.EvaluationResult{Kind: tt.kind}
		if got := runner.ExitReason(res); got != tt.want {
			t.Errorf("ExitReason(%q) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestRunBatchWritesRecords(t *testing.T) {
	runDir := t.TempDir()
	ex := &fakeExecutor{}
	opts := &runner.TrialOpts{
		Executor: ex,
		Config:   config.Default().Benchmark,
		RunDir:   runDir,
		Mode:     "pool",
	}
	subs := []runner.Submission{
		{Name: "Good", Code: "package main", Index: 0},
		{Name: "Bad", Code: "package main", Index: 0},
		{Name: "Good", Code: "package main", Index: 1},
	}
	records, errs := runner.RunBatch(context.Background(), opts, subs, 2)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 3 || records[1].Name != "Bad" {
		t.Fatalf("records out of order: %+v", records)
	}
	if len(ex.tasks) != 3 {
		t.Errorf("submitted %d tasks, want 3", len(ex.tasks))
	}
	for _, task := range ex.tasks {
		if task.ID == "" {
			t.Error("task without id")
		}
	}

	rec, err := result.ReadRecord(filepath.Join(result.CandidateDir(runDir, "Bad", 0), "record.json"))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !rec.Result.Failed() || rec.Result.Kind != result.KindCompileError {
		t.Errorf("Bad record: %+v", rec.Result)
	}
	if rec.Feedback == "" || rec.Mode != "pool" {
		t.Errorf("record missing feedback or mode: %+v", rec)
	}

	rec, err = result.ReadRecord(filepath.Join(result.CandidateDir(runDir, "Good", 1), "record.json"))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if rec.Result.Fitness != 0.3 {
		t.Errorf("Good fitness = %g", rec.Result.Fitness)
	}
}
