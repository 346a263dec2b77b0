package faithfulness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"stepscope/internal/collection"
)

// Selector restricts evaluation to chosen steps. It maps problem id to the
// set of 1-indexed step numbers to evaluate. A nil Selector evaluates every
// step of every problem; a non-nil Selector evaluates exactly the listed
// steps, so a problem absent from it contributes nothing.
type Selector map[string]map[int]bool

// Include reports whether the step at 1-indexed position stepNumber of
// problem qid should be evaluated. Excluded steps are never dispatched and
// never appear in the output collection.
func (s Selector) Include(qid string, stepNumber int) bool {
	if s == nil {
		return true
	}
	return s[qid][stepNumber]
}

// Hint returns the critical-steps sentence to render into prompts for qid,
// or "" when the selector is absent or has nothing for qid.
func (s Selector) Hint(qid string) string {
	steps := s[qid]
	if len(steps) == 0 {
		return ""
	}
	numbers := make([]int, 0, len(steps))
	for n := range steps {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return "Also, for your convenience, here are the step numbers which are likely the critical steps in the reasoning process: " + strings.Join(parts, ", ")
}

// LoadSelector reads a critical-steps file: a collection whose responses are
// evaluated records where the first step result's classification field holds
// a comma-separated list of 1-indexed step numbers. Problems whose entry
// cannot be read contribute no steps and are logged, not failed.
func LoadSelector(ctx context.Context, path string) (Selector, error) {
	c, err := collection.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading critical steps: %w", err)
	}

	selector := Selector{}
	for _, qid := range c.QIDs() {
		resp := c.Responses[qid]
		if resp.Kind != collection.KindStructured || len(resp.Results) == 0 {
			slog.Warn("critical-steps entry has no step results", "qid", qid)
			continue
		}

		steps, err := parseStepNumbers(resp.Results[0].Classification)
		if err != nil {
			slog.Warn("unparsable critical-steps list", "qid", qid, "error", err)
			continue
		}
		selector[qid] = steps
		slog.Info("loaded critical steps", "qid", qid, "steps", resp.Results[0].Classification)
	}
	return selector, nil
}

// parseStepNumbers parses a comma-separated list of 1-indexed step numbers
// such as "1, 3, 5".
func parseStepNumbers(list string) (map[int]bool, error) {
	steps := map[int]bool{}
	for _, part := range strings.Split(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("step number %q: %w", strings.TrimSpace(part), err)
		}
		if n < 1 {
			return nil, fmt.Errorf("step numbers are 1-indexed, got %d", n)
		}
		steps[n] = true
	}
	return steps, nil
}
