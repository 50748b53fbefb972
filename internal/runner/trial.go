package runner

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/logging"
	"github.com/signalnine/sandbench/internal/report"
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/worker"
)

type TrialOpts struct {
	Executor worker.Executor
	Config   config.Benchmark
	// RunDir receives one record per trial. Empty skips persistence.
	RunDir   string
	Mode     string
	Feedback report.Formatter
	Logger   *log.Logger
}

// Submission is one candidate source to evaluate.
type Submission struct {
	Name  string
	Code  string
	Index int
}

// RunTrial submits one candidate and stores its record. The returned error
// covers persistence only; evaluation failures live in the record.
func RunTrial(ctx context.Context, opts *TrialOpts, sub Submission) (*result.Record, error) {
	logger := logging.Or(opts.Logger)
	task := result.Task{
		ID:        uuid.NewString(),
		Candidate: result.Candidate{Code: sub.Code, Name: sub.Name},
		Config:    opts.Config,
	}
	logger.Info("evaluating", "name", sub.Name, "task", task.ID, "mode", opts.Mode)
	res := opts.Executor.Submit(ctx, task)

	feedback := opts.Feedback
	if feedback == nil {
		feedback = report.Vanilla
	}
	rec := &result.Record{
		Name:     sub.Name,
		Mode:     opts.Mode,
		Index:    sub.Index,
		Result:   res,
		Feedback: feedback(sub.Name, res),
	}
	if res.Failed() {
		logger.Warn("evaluation failed", "name", sub.Name, "kind", res.Kind, "err", res.Error)
	} else {
		logger.Info("evaluation done", "name", sub.Name, "fitness", res.Fitness, "duration_ms", res.DurationMS)
	}

	if opts.RunDir != "" {
		dir := result.CandidateDir(opts.RunDir, sub.Name, sub.Index)
		if err := result.WriteRecord(dir, rec); err != nil {
			return rec, fmt.Errorf("writing record for %s: %w", sub.Name, err)
		}
	}
	return rec, nil
}

// RunBatch evaluates every submission with at most parallel in flight and
// returns the records in submission order.
func RunBatch(ctx context.Context, opts *TrialOpts, subs []Submission, parallel int) ([]*result.Record, []error) {
	records := make([]*result.Record, len(subs))
	jobs := make([]Job, len(subs))
	for i, sub := range subs {
		jobs[i] = func(ctx context.Context) error {
			rec, err := RunTrial(ctx, opts, sub)
			records[i] = rec
			return err
		}
	}
	return records, RunPool(ctx, parallel, jobs)
}

// ExitReason maps an evaluation result to a short outcome word.
func ExitReason(res result.EvaluationResult) string {
	switch res.Kind {
	case "":
		return "completed"
	case result.KindWorkerTimeout:
		return "timeout"
	case result.KindWorkerCrash:
		return "crashed"
	case result.KindWorkerUnavailable:
		return "unavailable"
	default:
		return "rejected"
	}
}
