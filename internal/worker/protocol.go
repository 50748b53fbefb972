// Package worker runs evaluation tasks in separate OS processes, either in a
// pool of persistent workers or one single-use process per task.
//
// Parent and worker talk newline-delimited JSON over the worker's stdin and
// stdout. The worker announces itself with a Ready line, then answers each
// Request with exactly one Response.
package worker

import (
	"github.com/signalnine/sandbench/internal/result"
)

// maxMessage bounds one protocol line. Candidate source is the bulk of it.
const maxMessage = 16 << 20

type Ready struct {
	Ready bool `json:"ready"`
	PID   int  `json:"pid"`
}

type Request struct {
	ID   string      `json:"id"`
	Task result.Task `json:"task"`
}

type Response struct {
	ID     string                  `json:"id"`
	Result result.EvaluationResult `json:"result"`
}
