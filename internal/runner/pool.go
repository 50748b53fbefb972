package runner

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type Job func(ctx context.Context) error

// RunPool executes jobs with at most maxWorkers concurrently. A failing job
// does not stop the others; all errors are returned in job order.
func RunPool(ctx context.Context, maxWorkers int, jobs []Job) []error {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	errs := make([]error, len(jobs))
	for i, job := range jobs {
		g.Go(func() error {
			errs[i] = job(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var out []error
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
