// Package report renders evaluated collections as Markdown (optionally
// converted to HTML) for human review.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"stepscope/internal/collection"
	"stepscope/internal/faithfulness"
	"stepscope/internal/questionnaire"
)

// maxStepPreview bounds the step text shown in report tables.
const maxStepPreview = 80

// Markdown renders one report for an evaluated collection. The battery
// supplies the expected reference code the codes are compared against.
func Markdown(c *collection.Collection, battery questionnaire.Battery) string {
	var b strings.Builder

	b.WriteString("# Faithfulness Evaluation Report\n\n")
	fmt.Fprintf(&b, "**Evaluator model:** %s\n\n", c.ModelID)
	if c.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", c.Description)
	}
	fmt.Fprintf(&b, "Trace splitting: %d succeeded, %d failed.\n\n",
		c.SplitSuccessCount, c.SplitFailureCount)

	problems, results, unparsed := tally(c)
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- **Problems:** %d\n", problems)
	fmt.Fprintf(&b, "- **Step results:** %d\n", results)
	fmt.Fprintf(&b, "- **Results with unparsed slots:** %d\n", unparsed)
	fmt.Fprintf(&b, "- **Expected reference code:** `%s`\n\n", battery.ExpectedCode())

	writeHistogram(&b, c, battery)
	writeProblems(&b, c, battery)

	return b.String()
}

// HTML converts a Markdown report to a standalone HTML document.
func HTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("rendering report HTML: %w", err)
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<title>Faithfulness Evaluation Report</title>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}

func tally(c *collection.Collection) (problems, results, unparsed int) {
	for _, qid := range c.QIDs() {
		resp := c.Responses[qid]
		if len(resp.Results) == 0 {
			continue
		}
		problems++
		for _, result := range resp.Results {
			results++
			if strings.Contains(result.Classification, faithfulness.UnparsedSlot) {
				unparsed++
			}
		}
	}
	return problems, results, unparsed
}

func writeHistogram(b *strings.Builder, c *collection.Collection, battery questionnaire.Battery) {
	counts := map[string]int{}
	for _, resp := range c.Responses {
		for _, result := range resp.Results {
			counts[result.Classification]++
		}
	}
	if len(counts) == 0 {
		return
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	// Most frequent first; ties break on the code for stable output.
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})

	expected := battery.ExpectedCode()
	b.WriteString("## Classification codes\n\n")
	b.WriteString("| Code | Count | |\n")
	b.WriteString("|------|-------|---|\n")
	for _, code := range codes {
		marker := ""
		if code == expected {
			marker = "expected"
		}
		fmt.Fprintf(b, "| `%s` | %d | %s |\n", code, counts[code], marker)
	}
	b.WriteString("\n")
}

func writeProblems(b *strings.Builder, c *collection.Collection, battery questionnaire.Battery) {
	expected := battery.ExpectedCode()

	b.WriteString("## Problems\n\n")
	for _, qid := range c.QIDs() {
		resp := c.Responses[qid]
		fmt.Fprintf(b, "### %s\n\n", qid)

		if resp.CorrectnessLabel != "" {
			fmt.Fprintf(b, "Correctness: %s\n\n", resp.CorrectnessLabel)
		}
		if len(resp.Results) == 0 {
			b.WriteString("No step results.\n\n")
			continue
		}

		deviating := 0
		b.WriteString("| # | Code | Step |\n")
		b.WriteString("|---|------|------|\n")
		for i, result := range resp.Results {
			fmt.Fprintf(b, "| %d | `%s` | %s |\n", i+1, result.Classification, preview(result.Step))
			if result.Classification != expected {
				deviating++
			}
		}
		fmt.Fprintf(b, "\n%d of %d steps deviate from the expected code.\n\n",
			deviating, len(resp.Results))
	}
}

// preview flattens and shortens step text so it fits one table cell.
func preview(step string) string {
	flat := strings.Join(strings.Fields(step), " ")
	flat = strings.ReplaceAll(flat, "|", "\\|")
	runes := []rune(flat)
	if len(runes) <= maxStepPreview {
		return flat
	}
	return string(runes[:maxStepPreview-1]) + "…"
}
