package evaluator

import (
	"fmt"

	"github.com/signalnine/sandbench/internal/bbob"
	"github.com/signalnine/sandbench/internal/sandbox"
)

// SmokeBudget is the evaluation budget of the smoke test.
const SmokeBudget = 100

// SmokeTest runs alg once on the fixed low-dimensional smoke problem.
func SmokeTest(suite *bbob.Suite, ns *sandbox.Namespace, alg sandbox.Algorithm) error {
	ns.Reseed(0)
	p := suite.SmokeProblem(SmokeBudget)
	if err := runOnce(alg, p); err != nil {
		return fmt.Errorf("smoke test: %w", err)
	}
	return nil
}
