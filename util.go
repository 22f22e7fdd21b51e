package fanout

import (
	"fmt"
)

// PrintRun writes a run summary to stdout. Per-agent lines are gray, the
// final answer blue, failures red.
func PrintRun(run *TaskRun) {
	fmt.Printf("\033[90msession %s (%s)\033[0m\n", run.SessionID, run.Duration.Round(1e6))
	for _, result := range run.Results {
		if result.Success() {
			fmt.Printf("\033[90magent %d\033[0m: completed in %d iteration(s)\n",
				result.AgentIndex, result.Iterations)
		} else {
			fmt.Printf("\033[91magent %d\033[0m: failed after %d iteration(s): %s\n",
				result.AgentIndex, result.Iterations, result.Err)
		}
	}
	fmt.Printf("\033[94mAnswer\033[0m: %s\n", run.FinalAnswer)
}

// truncateString shortens a string for log output
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
