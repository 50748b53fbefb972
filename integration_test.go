//go:build integration

package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/sandbench/internal/result"
)

const candidate = `package main

import "math/rand"

type RandomSearch struct{ budget, dim int }

func NewRandomSearch(budget, dim int) *RandomSearch { return &RandomSearch{budget, dim} }

func (r *RandomSearch) Optimize(f func([]float64) float64) {
	for i := 0; i < r.budget; i++ {
		x := make([]float64, r.dim)
		for j := range x {
			x[j] = rand.Float64()*10 - 5
		}
		f(x)
	}
}
`

// buildBinary compiles sandbench so worker processes can re-exec it.
func buildBinary(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "sandbench")
	out, err := exec.Command("go", "build", "-o", bin, ".").CombinedOutput()
	if err != nil {
		t.Fatalf("go build: %v\n%s", err, out)
	}
	return bin
}

func writeConfig(t *testing.T, resultsDir string) string {
	t.Helper()
	cfg := `benchmark:
  training_instances: [0, 7]
  dims: [2, 3]
  budget_factor: 50
  bounds:
    - {lo: -5, hi: 5}
  allowed_imports: [math, math/rand]
  eval_timeout: 60s
  use_worker_pool: true
  worker_recycle_interval: 2
workers:
  size: 2
results:
  dir: ` + resultsDir + "\n"
	path := filepath.Join(t.TempDir(), "sandbench.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func evaluate(t *testing.T, bin, cfg string, extra ...string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "rs.go")
	if err := os.WriteFile(src, []byte(candidate), 0o644); err != nil {
		t.Fatal(err)
	}
	args := append([]string{"evaluate", "--config", cfg, "--feedback", "behavioral", src}, extra...)
	out, err := exec.Command(bin, args...).CombinedOutput()
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "Behavioral profile") {
		t.Errorf("feedback missing from output:\n%s", out)
	}
}

func TestEvaluateModesAgree(t *testing.T) {
	bin := buildBinary(t)

	var records []*result.Record
	for _, extra := range [][]string{nil, {"--no-worker-pool"}} {
		resultsDir := t.TempDir()
		evaluate(t, bin, writeConfig(t, resultsDir), extra...)

		runDir, err := filepath.EvalSymlinks(filepath.Join(resultsDir, "latest"))
		if err != nil {
			t.Fatalf("latest run: %v", err)
		}
		rec, err := result.ReadRecord(filepath.Join(result.CandidateDir(runDir, "RandomSearch", 0), "record.json"))
		if err != nil {
			t.Fatalf("reading record: %v", err)
		}
		if rec.Result.Failed() {
			t.Fatalf("evaluation failed: %s", rec.Result.Error)
		}
		if got := rec.Result.Evaluations; got != 2*2*50+2*3*50 {
			t.Errorf("evaluations: got %d, want %d", got, 2*2*50+2*3*50)
		}
		records = append(records, rec)
	}

	if records[0].Mode != "pool" || records[1].Mode != "spawn" {
		t.Errorf("modes: got %s and %s", records[0].Mode, records[1].Mode)
	}
	if records[0].Result.Fitness != records[1].Result.Fitness {
		t.Errorf("fitness differs across modes: %v vs %v", records[0].Result.Fitness, records[1].Result.Fitness)
	}
}
