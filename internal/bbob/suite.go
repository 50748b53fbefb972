package bbob

import "sync"

// Smoke-test problem: plain Discus in two dimensions, instance 1.
const (
	SmokeFunction = "discus"
	SmokeInstance = 1
	SmokeDim      = 2
)

type instanceKey struct {
	id, dim int
}

// Suite builds instances on demand and keeps them for the life of the
// process. Instances are immutable, so one suite can serve many runs.
type Suite struct {
	mu        sync.Mutex
	instances map[instanceKey]*Instance
	smoke     *Instance
}

func NewSuite() *Suite {
	return &Suite{
		instances: make(map[instanceKey]*Instance),
		smoke:     NewSingle(SmokeFunction, SmokeInstance, SmokeDim),
	}
}

func (s *Suite) Instance(id, dim int) *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := instanceKey{id, dim}
	in, ok := s.instances[key]
	if !ok {
		in = NewInstance(id, dim)
		s.instances[key] = in
	}
	return in
}

// Preload builds every (id, dim) pair up front.
func (s *Suite) Preload(ids, dims []int) {
	for _, d := range dims {
		for _, id := range ids {
			s.Instance(id, d)
		}
	}
}

// Problem returns a fresh problem over the cached instance.
func (s *Suite) Problem(id, dim, budget int) *Problem {
	return NewProblem(s.Instance(id, dim), budget)
}

func (s *Suite) SmokeProblem(budget int) *Problem {
	return NewProblem(s.smoke, budget)
}

// Len is the number of cached instances.
func (s *Suite) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}
