// Package fanout provides the concurrent run-and-collect primitive the
// context synthesizer (C6) uses for its fan-out phases: spec.md §8
// property 10 requires that one query's failure never aborts its
// siblings, which rules out errgroup's fail-fast Wait() in favor of
// per-task error containment.
//
// Adapted from the teacher's internal/diffanalyzer/analyzer.go STEP 4,
// which queries four independent risk dimensions per block concurrently
// and logs-and-continues on any one dimension's failure rather than
// failing the whole block.
package fanout

import (
	"context"
	"sync"

	"github.com/graphkg/service/internal/logging"
)

// Task names one concurrent unit of work.
type Task struct {
	Name string
	Run  func(ctx context.Context) (any, error)
}

// Result is what a Task produced: either a Value or an Err, never both.
// A failed task contributes a nil Value to Run's result map — callers
// synthesize the empty/null fallback spec.md §4.6 asks for, not fanout.
type Result struct {
	Value any
	Err   error
}

// Run executes every task concurrently and returns one Result per task
// name. It never returns an error itself and never cancels a sibling
// task because another failed — that containment is the entire point.
func Run(ctx context.Context, tasks []Task) map[string]Result {
	results := make(map[string]Result, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(len(tasks))
	for _, task := range tasks {
		go func(t Task) {
			defer wg.Done()
			value, err := t.Run(ctx)
			if err != nil {
				logging.Warn("fanout task failed, continuing with empty result", "task", t.Name, "error", err)
			}
			mu.Lock()
			results[t.Name] = Result{Value: value, Err: err}
			mu.Unlock()
		}(task)
	}
	wg.Wait()

	return results
}
