package kin_arm

import (
	"context"
	"sync"

	"go.viam.com/utils"
)

// Result pairs a goal from SolveAll with its outcome.
type Result struct {
	Goal     Goal
	Solution *Solution
	Err      error
}

// SolveAll solves goals on up to workers goroutines. Results are returned in
// input order. Goals not started before ctx is done get ctx.Err().
func (s *Solver) SolveAll(ctx context.Context, goals []Goal, workers int) []Result {
	results := make([]Result, len(goals))
	if len(goals) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(goals) {
		workers = len(goals)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			for i := range jobs {
				results[i].Goal = goals[i]
				if err := ctx.Err(); err != nil {
					results[i].Err = err
					continue
				}
				results[i].Solution, results[i].Err = s.SolveDetailed(goals[i])
			}
		})
	}

	for i := range goals {
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = Result{Goal: goals[i], Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()

	s.logger.Debugf("Solved %d goals on %d workers", len(goals), workers)
	return results
}
