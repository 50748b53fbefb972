package bbob

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrBudgetExceeded is raised (as a panic value wrapping it) when an
// algorithm asks for more evaluations than the run allows.
var ErrBudgetExceeded = errors.New("evaluation budget exhausted")

// Observer sees every objective evaluation, in order.
type Observer interface {
	Observe(evaluations int, x []float64, y float64)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(evaluations int, x []float64, y float64)

func (f ObserverFunc) Observe(evaluations int, x []float64, y float64) { f(evaluations, x, y) }

// Problem is the mutable per-run view of an Instance: evaluation counter,
// budget, best-so-far and attached observers.
type Problem struct {
	mu        sync.Mutex
	inst      *Instance
	budget    int
	evals     int
	exhausted bool
	best      float64
	observers []Observer
}

func NewProblem(inst *Instance, budget int) *Problem {
	return &Problem{inst: inst, budget: budget, best: math.Inf(1)}
}

func (p *Problem) Dim() int { return p.inst.Dim }

func (p *Problem) Instance() *Instance { return p.inst }

func (p *Problem) Optimum() float64 { return p.inst.optimum }

func (p *Problem) Budget() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.budget
}

// Attach registers observers for subsequent evaluations.
func (p *Problem) Attach(obs ...Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, obs...)
}

// Detach removes all observers.
func (p *Problem) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = nil
}

// Reset returns the problem to its fresh state. Observers stay attached;
// call Detach to clear them.
func (p *Problem) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = 0
	p.exhausted = false
	p.best = math.Inf(1)
}

func (p *Problem) Evaluations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evals
}

// Exhausted reports whether the algorithm tried to exceed the budget.
func (p *Problem) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

func (p *Problem) Best() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.best
}

// Evaluate is the objective handed to candidate algorithms. Only the first
// Dim coordinates of x are used. It panics with an error wrapping
// ErrBudgetExceeded once the budget is spent.
func (p *Problem) Evaluate(x []float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(x) < p.inst.Dim {
		panic(fmt.Errorf("objective expects %d coordinates, got %d", p.inst.Dim, len(x)))
	}
	if p.evals >= p.budget {
		p.exhausted = true
		panic(fmt.Errorf("%w after %d evaluations", ErrBudgetExceeded, p.budget))
	}
	p.evals++
	y := p.inst.Eval(x[:p.inst.Dim])
	if y < p.best {
		p.best = y
	}
	for _, obs := range p.observers {
		obs.Observe(p.evals, x, y)
	}
	return y
}

// IsBudgetExceeded reports whether a recovered panic value is the budget signal.
func IsBudgetExceeded(v any) bool {
	err, ok := v.(error)
	return ok && errors.Is(err, ErrBudgetExceeded)
}
