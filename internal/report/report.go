// Package report summarizes stored evaluation records and formats feedback.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/sandbench/internal/result"
)

type CandidateSummary struct {
	Name        string         `json:"name"`
	Evaluations int            `json:"evaluations"`
	Failures    int            `json:"failures"`
	BestFitness *float64       `json:"best_fitness"`
	MeanFitness *float64       `json:"mean_fitness"`
	MeanMS      float64        `json:"mean_duration_ms"`
	Errors      map[string]int `json:"errors,omitempty"`
}

// Generate reads the records under runDir and writes one summary row per
// candidate name.
func Generate(runDir, format string, w io.Writer) error {
	records, err := collectRecords(runDir)
	if err != nil {
		return err
	}
	summaries := aggregate(records)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func collectRecords(runDir string) ([]*result.Record, error) {
	var records []*result.Record
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == "record.json" {
			rec, err := result.ReadRecord(path)
			if err != nil {
				return nil
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

func aggregate(records []*result.Record) []CandidateSummary {
	type accum struct {
		count, failed int
		best, sum     float64
		ms            float64
		errors        map[string]int
	}
	byName := map[string]*accum{}

	for _, r := range records {
		a, ok := byName[r.Name]
		if !ok {
			a = &accum{best: math.Inf(-1), errors: map[string]int{}}
			byName[r.Name] = a
		}
		a.count++
		a.ms += float64(r.Result.DurationMS)
		if r.Result.Failed() {
			a.failed++
			a.errors[string(r.Result.Kind)]++
			continue
		}
		a.sum += r.Result.Fitness
		a.best = math.Max(a.best, r.Result.Fitness)
	}

	var summaries []CandidateSummary
	for name, a := range byName {
		s := CandidateSummary{
			Name:        name,
			Evaluations: a.count,
			Failures:    a.failed,
			MeanMS:      a.ms / float64(a.count),
		}
		if ok := a.count - a.failed; ok > 0 {
			best, mean := a.best, a.sum/float64(ok)
			s.BestFitness, s.MeanFitness = &best, &mean
		}
		if len(a.errors) > 0 {
			s.Errors = a.errors
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

func fitness(v *float64) string {
	if v == nil {
		return "-inf"
	}
	return fmt.Sprintf("%.4f", *v)
}

func writeTable(summaries []CandidateSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CANDIDATE\tEVALS\tFAILED\tBEST AOCC\tMEAN AOCC\tMEAN TIME")
	fmt.Fprintln(tw, strings.Repeat("-", 72))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%.1fs\n",
			s.Name, s.Evaluations, s.Failures, fitness(s.BestFitness), fitness(s.MeanFitness), s.MeanMS/1000)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []CandidateSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Candidate | Evals | Failed | Best AOCC | Mean AOCC | Mean Time |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %d | %s | %s | %.1fs |\n",
			s.Name, s.Evaluations, s.Failures, fitness(s.BestFitness), fitness(s.MeanFitness), s.MeanMS/1000)
	}
	return nil
}

func writeJSON(summaries []CandidateSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
