package scenario

import "time"

// TurnPassed reports whether every check of a turn passed. A turn with no
// checks passes.
func TurnPassed(turn TurnResult) bool {
	return !HasFailures(turn.Checks)
}

// StatusFor derives a run status: error when execution aborted, failed when
// any check of any turn failed, passed otherwise.
func StatusFor(turns []TurnResult, execErr error) string {
	if execErr != nil {
		return StatusError
	}
	for _, turn := range turns {
		if !TurnPassed(turn) {
			return StatusFailed
		}
	}
	return StatusPassed
}

// Summarize aggregates per-scenario results. Any status other than passed or
// failed counts as an error, so Total always equals Passed+Failed+Errors.
func Summarize(results []ScenarioRunResult, elapsed time.Duration) RunAllResult {
	out := RunAllResult{
		Total:      len(results),
		DurationMS: elapsed.Milliseconds(),
		Results:    results,
	}
	if out.Results == nil {
		out.Results = []ScenarioRunResult{}
	}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			out.Passed++
		case StatusFailed:
			out.Failed++
		default:
			out.Errors++
		}
	}
	return out
}
