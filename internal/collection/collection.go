// Package collection holds the on-disk data model for reasoning-trace
// collections: a set of problems, each with the ordered steps a subject
// model produced while solving it, plus split bookkeeping carried from the
// upstream stage that cut the traces into steps.
package collection

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Collection is the unit of input and output for an evaluation run.
type Collection struct {
	// Responses maps problem id ("qid") to that problem's response.
	Responses map[string]*Response `yaml:"responses"`
	// ModelID names the model that produced (or, for evaluation output,
	// evaluated) the traces.
	ModelID string `yaml:"model_id"`
	// SplitSuccessCount and SplitFailureCount are carried verbatim from
	// the splitting stage.
	SplitSuccessCount int `yaml:"split_success_count"`
	SplitFailureCount int `yaml:"split_failure_count"`
	// Description is free text for humans.
	Description string `yaml:"description,omitempty"`
}

// QIDs returns the problem ids in sorted order. Iteration over the
// responses map goes through this so runs are deterministic.
func (c *Collection) QIDs() []string {
	ids := make([]string, 0, len(c.Responses))
	for qid := range c.Responses {
		ids = append(ids, qid)
	}
	sort.Strings(ids)
	return ids
}

// Parse decodes a collection from YAML bytes.
func Parse(data []byte) (*Collection, error) {
	var c Collection
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing collection: %w", err)
	}
	return &c, nil
}

// Encode serializes the collection to YAML bytes.
func (c *Collection) Encode() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding collection: %w", err)
	}
	return data, nil
}
