package faithfulness

import (
	"fmt"
	"regexp"
	"strings"

	"stepscope/internal/collection"
	"stepscope/internal/modelclient"
	"stepscope/internal/questionnaire"
)

// UnparsedSlot fills a classification slot whose answer tag is missing or
// holds anything other than a recognized yes/no value.
const UnparsedSlot = "_NA_"

// Flatten merges an evaluator reply into the single document the codec
// scans and the step result retains. Replies that expose the model's
// private reasoning get it prefixed in a <reasoning> block.
func Flatten(msg *modelclient.Message) string {
	if msg.Thinking == "" {
		return msg.Text
	}
	return fmt.Sprintf("<reasoning>%s</reasoning>\n%s", msg.Thinking, msg.Text)
}

// Classify scans raw for the battery's tagged answers and concatenates one
// slot per question. For each question the LAST <answer-N> occurrence in
// document order wins; evaluators sometimes restate an answer to correct an
// earlier one, and the correction is what counts. Unrecognized or missing
// answers yield the unparsed sentinel for that slot only.
func Classify(battery questionnaire.Battery, raw string) string {
	var code strings.Builder
	for _, q := range battery {
		code.WriteString(classifySlot(q.Index, raw))
	}
	return code.String()
}

func classifySlot(index int, raw string) string {
	re := regexp.MustCompile(fmt.Sprintf(`(?is)<answer-%d>(.*?)</answer-%d>`, index, index))
	matches := re.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return UnparsedSlot
	}

	answer := strings.ToUpper(strings.TrimSpace(matches[len(matches)-1][1]))
	switch answer {
	case "Y", "YES", "TRUE":
		return "Y"
	case "N", "NO", "FALSE":
		return "N"
	default:
		return UnparsedSlot
	}
}

// ParseStepResult builds the step result for one evaluated step: the
// verbatim step text, the classification code and the flattened raw reply
// kept for audit.
func ParseStepResult(battery questionnaire.Battery, step string, msg *modelclient.Message) *collection.StepResult {
	raw := Flatten(msg)
	return &collection.StepResult{
		Step:           step,
		Classification: Classify(battery, raw),
		Reasoning:      raw,
	}
}
