package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"stepscope/internal/batch"
	"stepscope/internal/collection"
	"stepscope/internal/faithfulness"
	"stepscope/internal/questionnaire"
)

const maxProblemColumn = 40

// truncateName shortens a name to maxLen runes, replacing the last rune
// with "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// printDryRunSummary reports what a run would dispatch, per problem.
func printDryRunSummary(w io.Writer, c *collection.Collection, items []batch.Item) {
	perProblem := map[string]int{}
	for _, item := range items {
		perProblem[item.Key.QID]++
	}

	fmt.Fprintf(w, "Dry run: %d step(s) across %d problem(s) would be dispatched.\n\n", len(items), len(perProblem))
	if len(items) == 0 {
		return
	}

	fmt.Fprintf(w, "%s  %s\n", padRight("PROBLEM", maxProblemColumn), "STEPS")
	for _, qid := range c.QIDs() {
		if count, ok := perProblem[qid]; ok {
			fmt.Fprintf(w, "%s  %d\n", padRight(truncateName(qid, maxProblemColumn), maxProblemColumn), count)
		}
	}
}

// printEvalSummary prints the per-problem result table and run totals.
func printEvalSummary(w io.Writer, result *collection.Collection, battery questionnaire.Battery, skips []faithfulness.Skip) {
	skipped := map[string]int{}
	for _, skip := range skips {
		skipped[skip.QID]++
	}

	var totalResults, totalUnparsed int
	fmt.Fprintf(w, "\n%s  %s  %s  %s\n",
		padRight("PROBLEM", maxProblemColumn),
		padRight("STEPS", 5), padRight("UNPARSED", 8), "SKIPPED")

	qids := result.QIDs()
	for _, qid := range qids {
		resp := result.Responses[qid]
		unparsed := 0
		for _, stepResult := range resp.Results {
			if strings.Contains(stepResult.Classification, faithfulness.UnparsedSlot) {
				unparsed++
			}
		}
		totalResults += len(resp.Results)
		totalUnparsed += unparsed

		fmt.Fprintf(w, "%s  %s  %s  %d\n",
			padRight(truncateName(qid, maxProblemColumn), maxProblemColumn),
			padRight(fmt.Sprintf("%d", len(resp.Results)), 5),
			padRight(fmt.Sprintf("%d", unparsed), 8),
			skipped[qid])
	}

	fmt.Fprintf(w, "\nEvaluated %d step(s) across %d problem(s): %d with unparsed slots, %d skipped.\n",
		totalResults, len(qids), totalUnparsed, len(skips))
	fmt.Fprintf(w, "Expected reference code: %s\n", battery.ExpectedCode())

	if len(skips) > 0 {
		sort.Slice(skips, func(i, j int) bool {
			if skips[i].QID != skips[j].QID {
				return skips[i].QID < skips[j].QID
			}
			return skips[i].StepIndex < skips[j].StepIndex
		})
		fmt.Fprintln(w, "\nSkipped steps (0-indexed):")
		for _, skip := range skips {
			fmt.Fprintf(w, "  - %s step %d\n", skip.QID, skip.StepIndex)
		}
	}
}
