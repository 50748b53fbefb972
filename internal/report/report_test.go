package report_test

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/sandbench/internal/report"
	"github.com/signalnine/sandbench/internal/result"
)

func writeRecords(t *testing.T, runDir string) {
	t.Helper()
	records := []*result.Record{
		{Name: "RandomSearch", Index: 0, Result: result.EvaluationResult{Fitness: 0.4, DurationMS: 1000}},
		{Name: "RandomSearch", Index: 1, Result: result.EvaluationResult{Fitness: 0.6, DurationMS: 3000}},
		{Name: "Broken", Index: 0, Result: result.Failure(result.KindCompileError, "compile error: x")},
	}
	for _, r := range records {
		if err := result.WriteRecord(result.CandidateDir(runDir, r.Name, r.Index), r); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
}

func TestGenerateTable(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "runs", "test-run")
	writeRecords(t, runDir)

	var buf bytes.Buffer
	if err := report.Generate(runDir, "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "RandomSearch") {
		t.Error("expected RandomSearch in output")
	}
	if !strings.Contains(output, "Broken") {
		t.Error("expected Broken in output")
	}
	if !strings.Contains(output, "0.6000") {
		t.Errorf("expected best fitness 0.6000 in output:\n%s", output)
	}
}

func TestGenerateJSON(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "runs", "test-run")
	writeRecords(t, runDir)

	var buf bytes.Buffer
	if err := report.Generate(runDir, "json", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var summaries []report.CandidateSummary
	if err := json.Unmarshal(buf.Bytes(), &summaries); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	broken, rs := summaries[0], summaries[1]
	if broken.Failures != 1 || broken.BestFitness != nil {
		t.Errorf("Broken: %+v", broken)
	}
	if broken.Errors["compile_error"] != 1 {
		t.Errorf("Broken errors: %v", broken.Errors)
	}
	if rs.Evaluations != 2 || math.Abs(*rs.MeanFitness-0.5) > 1e-12 || rs.MeanMS != 2000 {
		t.Errorf("RandomSearch: %+v", rs)
	}
}

func TestGenerateMarkdown(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "runs", "test-run")
	writeRecords(t, runDir)

	var buf bytes.Buffer
	if err := report.Generate(runDir, "markdown", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "| Candidate |") {
		t.Errorf("unexpected markdown:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "| Broken | 1 | 1 | -inf | -inf |") {
		t.Errorf("missing failed row:\n%s", buf.String())
	}
}
