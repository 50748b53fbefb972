package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/trajectory"
)

// Worker processes re-execute the test binary with the worker subcommand.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == "worker" {
		root := NewRootCmd()
		root.SetArgs(os.Args[1:])
		if err := root.Execute(); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "instance 7, dim 5") {
		t.Errorf("expected default instances in output:\n%s", out)
	}
}

func TestLoadConfigNamedFileMustExist(t *testing.T) {
	_, err := execute(t, "list", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing --config file")
	}
}

func TestListShowsMetrics(t *testing.T) {
	out, err := execute(t, "list", "--config", "../testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, name := range trajectory.MetricNames {
		if !strings.Contains(out, name) {
			t.Errorf("metric %s missing from list output", name)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	good := writeFile(t, dir, "rs.go", benchCandidate)
	out, err := execute(t, "validate", good)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "RandomSearch passed the smoke test") {
		t.Errorf("unexpected output:\n%s", out)
	}

	bad := writeFile(t, dir, "bad.go", "package x\n\nimport \"os\"\n\nfunc NewBad(b, d int) int { return 0 }\n")
	if _, err := execute(t, "validate", bad); err == nil || !strings.Contains(err.Error(), "os") {
		t.Errorf("expected import violation, got %v", err)
	}
}

const smallBenchmark = `benchmark:
  training_instances: [0, 7]
  dims: [2]
  budget_factor: 20
  bounds:
    - {lo: -5, hi: 5}
  allowed_imports: [math, math/rand]
  eval_timeout: 20s
  use_worker_pool: true
`

func TestValidateFull(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	cfg := writeFile(t, dir, "sandbench.yaml", smallBenchmark)

	good := writeFile(t, dir, "rs.go", benchCandidate)
	out, err := execute(t, "validate", "--full", "--config", cfg, good)
	if err != nil {
		t.Fatalf("validate --full: %v\n%s", err, out)
	}
	if !strings.Contains(out, "The algorithm RandomSearch got an average Area over the convergence curve") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestValidateFullSurvivesCrashingCandidate(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	cfg := writeFile(t, dir, "sandbench.yaml", smallBenchmark)

	// The goroutine keeps calling the objective past the budget, where the
	// budget panic is raised outside any recover.
	stray := writeFile(t, dir, "stray.go", `package main

type Stray struct{ dim int }

func NewStray(budget, dim int) *Stray { return &Stray{dim: dim} }

func (s *Stray) Optimize(f func([]float64) float64) {
	x := make([]float64, s.dim)
	go func() {
		for {
			f(x)
		}
	}()
	for {
	}
}
`)
	_, err := execute(t, "validate", "--full", "--config", cfg, stray)
	if err == nil {
		t.Fatal("expected the evaluation to fail")
	}
	if !strings.Contains(err.Error(), "worker_") {
		t.Errorf("expected a worker failure, got %v", err)
	}
}

func TestReport(t *testing.T) {
	runDir := t.TempDir()
	rec := &result.Record{
		Name:   "RandomSearch",
		Mode:   "pool",
		Result: result.EvaluationResult{Fitness: 0.25, PerInstanceAUCs: []float64{0.25}},
	}
	if err := result.WriteRecord(result.CandidateDir(runDir, rec.Name, 0), rec); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "report", runDir, "--format", "markdown")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "RandomSearch") {
		t.Errorf("report output missing candidate:\n%s", out)
	}
}

func TestEvaluateRejectsNameWithManyFiles(t *testing.T) {
	_, err := execute(t, "evaluate", "--name", "X", "a.go", "b.go")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestReadSubmissions(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", benchCandidate)
	b := writeFile(t, dir, "b.go", benchCandidate)
	broken := writeFile(t, dir, "broken_algo.go", "package x\nfunc (\n")

	subs, err := readSubmissions([]string{a, b, broken}, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		name  string
		index int
	}{{"RandomSearch", 0}, {"RandomSearch", 1}, {"broken_algo", 0}}
	for i, w := range want {
		if subs[i].Name != w.name || subs[i].Index != w.index {
			t.Errorf("sub %d: got %s/%d, want %s/%d", i, subs[i].Name, subs[i].Index, w.name, w.index)
		}
	}

	subs, err = readSubmissions([]string{a}, "Custom")
	if err != nil {
		t.Fatal(err)
	}
	if subs[0].Name != "Custom" {
		t.Errorf("name override ignored: %s", subs[0].Name)
	}

	if _, err := readSubmissions([]string{filepath.Join(dir, "nope.go")}, ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]time.Duration{time.Second, 3 * time.Second})
	if mean != 2 || std != 1 {
		t.Errorf("meanStd = %v, %v; want 2, 1", mean, std)
	}
	if mean, std := meanStd(nil); mean != 0 || std != 0 {
		t.Errorf("meanStd(nil) = %v, %v", mean, std)
	}
}

func TestSameResults(t *testing.T) {
	ok := result.EvaluationResult{
		Fitness:           0.5,
		PerInstanceAUCs:   []float64{0.4, 0.6},
		BehavioralMetrics: map[string]float64{trajectory.Dispersion: 1},
		Evaluations:       10,
	}
	other := ok
	other.BehavioralMetrics = map[string]float64{trajectory.Dispersion: 2}
	failed := result.Failure(result.KindWorkerCrash, "")

	tests := []struct {
		name string
		a, b []result.EvaluationResult
		want bool
	}{
		{"equal", []result.EvaluationResult{ok}, []result.EvaluationResult{ok}, true},
		{"length", []result.EvaluationResult{ok}, nil, false},
		{"metrics differ", []result.EvaluationResult{ok}, []result.EvaluationResult{other}, false},
		{"failure", []result.EvaluationResult{failed}, []result.EvaluationResult{failed}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameResults(tt.a, tt.b); got != tt.want {
				t.Errorf("sameResults = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteBenchSummary(t *testing.T) {
	res := []result.EvaluationResult{{Fitness: 0.3, PerInstanceAUCs: []float64{0.3}}}
	var out bytes.Buffer
	writeBenchSummary(&out,
		benchRun{mode: "spawn", times: []time.Duration{2 * time.Second}, results: res},
		benchRun{mode: "pool", times: []time.Duration{time.Second}, results: res},
	)
	s := out.String()
	for _, want := range []string{"Speedup: 2.00x", "spawn mean: 2.00s", "Results identical"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ab", 3); got != "ab" {
		t.Errorf("truncate = %q", got)
	}
}
