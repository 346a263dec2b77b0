package collection

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ResponseKind discriminates the shapes a response takes on disk. The shape
// is resolved exactly once, when a collection is loaded; downstream code
// switches on the kind and never re-probes the document.
type ResponseKind int

const (
	// KindStructured is a full record with problem metadata.
	KindStructured ResponseKind = iota
	// KindBareSteps is a bare ordered list of step strings with no
	// metadata attached.
	KindBareSteps
)

// StepResult is the evaluation outcome for a single reasoning step.
type StepResult struct {
	// Step is the verbatim step text that was evaluated.
	Step string `yaml:"step"`
	// Classification holds one slot per questionnaire entry, e.g.
	// "YNNYNNNY". Slots that could not be parsed hold a sentinel token.
	Classification string `yaml:"classification"`
	// Reasoning is the full raw evaluator response, kept for audit.
	Reasoning string `yaml:"reasoning"`
}

// Response is one problem's entry in a collection. It is a tagged union:
// either a structured record (Kind == KindStructured) or a bare step list
// (Kind == KindBareSteps). The on-disk mapping shape lives in responseDoc;
// the custom YAML methods below translate between the two.
//
// For structured records, at most one of Steps and Results is set: Steps
// before evaluation, Results after. Mixing the two in one record is an
// error at both load and save time.
type Response struct {
	Kind ResponseKind

	Name     string
	Problem  string
	Solution string

	Steps   []string
	Results []*StepResult

	Thinking               string
	CorrectnessExplanation string
	Correct                *bool
	CorrectnessLabel       string
}

// responseDoc is the on-disk mapping shape. Steps stays a raw node so the
// union inside it can be resolved by hand.
type responseDoc struct {
	Name                   string    `yaml:"name,omitempty"`
	Problem                string    `yaml:"problem,omitempty"`
	Solution               string    `yaml:"solution,omitempty"`
	Steps                  yaml.Node `yaml:"steps"`
	Thinking               string    `yaml:"thinking,omitempty"`
	CorrectnessExplanation string    `yaml:"correctness_explanation,omitempty"`
	Correct                *bool     `yaml:"correct,omitempty"`
	CorrectnessLabel       string    `yaml:"correctness_label,omitempty"`
}

// UnmarshalYAML resolves the response union: a YAML sequence is a bare step
// list, a mapping is a structured record whose steps key holds either raw
// strings or step-result mappings.
func (r *Response) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var steps []string
		if err := node.Decode(&steps); err != nil {
			return fmt.Errorf("bare step list: %w", err)
		}
		*r = Response{Kind: KindBareSteps, Steps: steps}
		return nil

	case yaml.MappingNode:
		var doc responseDoc
		if err := node.Decode(&doc); err != nil {
			return err
		}
		out := Response{
			Kind:                   KindStructured,
			Name:                   doc.Name,
			Problem:                doc.Problem,
			Solution:               doc.Solution,
			Thinking:               doc.Thinking,
			CorrectnessExplanation: doc.CorrectnessExplanation,
			Correct:                doc.Correct,
			CorrectnessLabel:       doc.CorrectnessLabel,
		}
		if err := resolveSteps(&doc.Steps, &out); err != nil {
			return err
		}
		*r = out
		return nil

	default:
		return fmt.Errorf("response must be a mapping or a step list, got %s node", kindName(node.Kind))
	}
}

// resolveSteps fills exactly one of out.Steps / out.Results from the raw
// steps node.
func resolveSteps(node *yaml.Node, out *Response) error {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("steps must be a list, got %s node", kindName(node.Kind))
	}
	if len(node.Content) == 0 {
		out.Steps = []string{}
		return nil
	}

	var scalars, mappings int
	for _, child := range node.Content {
		switch resolvedKind(child) {
		case yaml.ScalarNode:
			scalars++
		case yaml.MappingNode:
			mappings++
		default:
			return fmt.Errorf("step entries must be strings or step results, got %s node", kindName(child.Kind))
		}
	}
	switch {
	case scalars > 0 && mappings > 0:
		return fmt.Errorf("steps mix raw strings and step results (%d raw, %d results)", scalars, mappings)
	case mappings > 0:
		return node.Decode(&out.Results)
	default:
		return node.Decode(&out.Steps)
	}
}

// MarshalYAML emits the on-disk shape for the response's kind.
func (r *Response) MarshalYAML() (any, error) {
	if r.Kind == KindBareSteps {
		return r.Steps, nil
	}
	if r.Steps != nil && r.Results != nil {
		return nil, fmt.Errorf("response %q mixes raw steps and step results", r.Name)
	}

	doc := responseDoc{
		Name:                   r.Name,
		Problem:                r.Problem,
		Solution:               r.Solution,
		Thinking:               r.Thinking,
		CorrectnessExplanation: r.CorrectnessExplanation,
		Correct:                r.Correct,
		CorrectnessLabel:       r.CorrectnessLabel,
	}

	var err error
	if r.Results != nil {
		err = doc.Steps.Encode(r.Results)
	} else {
		steps := r.Steps
		if steps == nil {
			steps = []string{}
		}
		err = doc.Steps.Encode(steps)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// RawSteps returns the ordered step texts when the response carries them in
// a recognized pre-evaluation shape. ok is false for records that hold step
// results (or nothing) instead.
func (r *Response) RawSteps() ([]string, bool) {
	if r.Steps == nil {
		return nil, false
	}
	return r.Steps, true
}

// MetaCopy returns a structured response carrying every metadata field of r
// and an empty result list. Only valid for structured responses.
func (r *Response) MetaCopy() *Response {
	return &Response{
		Kind:                   KindStructured,
		Name:                   r.Name,
		Problem:                r.Problem,
		Solution:               r.Solution,
		Thinking:               r.Thinking,
		CorrectnessExplanation: r.CorrectnessExplanation,
		Correct:                r.Correct,
		CorrectnessLabel:       r.CorrectnessLabel,
		Results:                []*StepResult{},
	}
}

func resolvedKind(n *yaml.Node) yaml.Kind {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return n.Alias.Kind
	}
	return n.Kind
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
