package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0 // Run completed, every step evaluated
	ExitSkipped = 1 // Run completed but some steps could not be evaluated
	ExitError   = 2 // Configuration or runtime error
)

// SkippedStepsError indicates that the evaluation ran to completion, but
// some steps exhausted their retries and were left out of the output.
type SkippedStepsError struct {
	Count int
}

func (e *SkippedStepsError) Error() string {
	return fmt.Sprintf("%d step(s) could not be evaluated", e.Count)
}

func main() {
	// API keys and S3 credentials may live in a local .env; a missing file
	// is fine.
	_ = godotenv.Load()

	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var skippedErr *SkippedStepsError
		if errors.As(err, &skippedErr) {
			os.Exit(ExitSkipped)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
