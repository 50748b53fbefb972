// Package trajectory captures per-evaluation search behaviour and scores it.
package trajectory

import "sync"

// Record is one objective call as seen by the Recorder.
type Record struct {
	Evaluations int       `json:"evaluations"`
	Y           float64   `json:"y"`
	X           []float64 `json:"x"`
}

// Recorder is a passive observer that appends one Record per objective call.
// It never reorders or drops records.
type Recorder struct {
	mu      sync.Mutex
	dim     int
	records []Record
}

func NewRecorder(dim int) *Recorder {
	return &Recorder{dim: dim}
}

// Observe implements bbob.Observer.
func (r *Recorder) Observe(evaluations int, x []float64, y float64) {
	n := r.dim
	if len(x) < n {
		n = len(x)
	}
	coords := make([]float64, n)
	copy(coords, x[:n])

	r.mu.Lock()
	r.records = append(r.records, Record{Evaluations: evaluations, Y: y, X: coords})
	r.mu.Unlock()
}

// Reset drops every record. Call it before each instance run.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}

// SetDim changes how many coordinates later records keep.
func (r *Recorder) SetDim(dim int) {
	r.mu.Lock()
	r.dim = dim
	r.mu.Unlock()
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Records returns the records in arrival order. The slice must not be modified.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[:len(r.records):len(r.records)]
}
