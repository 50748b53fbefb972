// Package evaluator runs the compile, smoke-test and benchmark pipeline for
// one candidate inside the current process. Workers call it; so does the
// validate command.
package evaluator

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/signalnine/sandbench/internal/bbob"
	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/logging"
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/sandbox"
)

type Evaluator struct {
	suite  *bbob.Suite
	logger *log.Logger

	// Output receives whatever candidate code prints.
	Output io.Writer
	// OnInstance, when set, sees every finished instance run.
	OnInstance func(InstanceResult)
}

// New returns an evaluator over suite. The suite is shared across
// evaluations; its instances are immutable.
func New(suite *bbob.Suite, logger *log.Logger) *Evaluator {
	return &Evaluator{suite: suite, logger: logging.Or(logger).WithPrefix("eval")}
}

// Evaluate never returns an error: every failure is folded into the result
// with fitness -Inf.
func (e *Evaluator) Evaluate(c result.Candidate, cfg config.Benchmark) result.EvaluationResult {
	start := time.Now()
	res := e.evaluate(c, cfg)
	res.DurationMS = time.Since(start).Milliseconds()
	if res.Failed() {
		e.logger.Debug("evaluation failed", "name", c.Name, "kind", res.Kind, "err", res.Error)
	} else {
		e.logger.Debug("evaluation done", "name", c.Name, "fitness", res.Fitness, "evaluations", res.Evaluations)
	}
	return res
}

func (e *Evaluator) evaluate(c result.Candidate, cfg config.Benchmark) result.EvaluationResult {
	if err := cfg.Validate(); err != nil {
		return result.Failuref(result.KindRuntimeError, "invalid benchmark config: %v", err)
	}

	out := e.Output
	if out == nil {
		out = io.Discard
	}
	ns, err := sandbox.Prepare(c.Code, sandbox.Options{Allowed: cfg.AllowedImports, Output: out})
	if err != nil {
		return prepareFailure(err)
	}

	name := c.Name
	if name == "" {
		if name, err = sandbox.InferName(c.Code); err != nil {
			return result.Failuref(result.KindSmokeTestFailure, "smoke test: %v", err)
		}
	}
	alg, err := ns.Factory(name)
	if err != nil {
		return result.Failuref(result.KindSmokeTestFailure, "smoke test: %v", err)
	}
	if err := SmokeTest(e.suite, ns, alg); err != nil {
		return result.Failure(result.KindSmokeTestFailure, err.Error())
	}

	runs, evals, err := e.Loop(ns, alg, cfg)
	if err != nil {
		res := result.Failure(result.KindRuntimeError, err.Error())
		res.Evaluations = evals
		return res
	}
	res := Aggregate(runs)
	res.Evaluations = evals
	return res
}

func prepareFailure(err error) result.EvaluationResult {
	var iv *sandbox.ImportViolation
	if errors.As(err, &iv) {
		return result.Failure(result.KindImportViolation, iv.Error())
	}
	var ce *sandbox.CompileError
	if errors.As(err, &ce) {
		return result.Failure(result.KindCompileError, ce.Error())
	}
	return result.Failure(result.KindCompileError, err.Error())
}

// runOnce runs alg on p until it returns or spends the budget. Running out
// of budget is a normal end; any other panic fails the run, even one raised
// after the candidate swallowed the budget signal.
func runOnce(alg sandbox.Algorithm, p *bbob.Problem) (err error) {
	defer func() {
		r := recover()
		if r == nil || bbob.IsBudgetExceeded(r) {
			return
		}
		if e, ok := r.(error); ok {
			err = fmt.Errorf("panic: %w", e)
		} else {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	alg(p.Budget(), p.Dim(), p.Evaluate)
	return nil
}
