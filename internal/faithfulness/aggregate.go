package faithfulness

import (
	"fmt"
	"sort"

	"stepscope/internal/batch"
	"stepscope/internal/collection"
)

// ResultDescription marks an output collection as the product of a
// faithfulness-evaluation run.
const ResultDescription = "Reasoning traces with step faithfulness evaluation"

// Skip identifies one step whose evaluation produced no usable result.
// StepIndex is 0-indexed.
type Skip struct {
	QID       string
	StepIndex int
}

// Aggregate reassembles the keyed dispatch outcomes into a new collection.
// Each problem's output response copies every metadata field of its
// original verbatim and carries the step results sorted by original step
// index, so the output is deterministic no matter what order the dispatch
// completed in. Outcomes with a nil result land on the skip list and the
// run continues; an outcome for a problem whose original response is
// missing or cannot carry step results is a structural mismatch and fails
// the whole aggregation.
func Aggregate(original *collection.Collection, modelID string, outcomes []batch.Outcome) (*collection.Collection, []Skip, error) {
	grouped := map[string][]batch.Outcome{}
	var skips []Skip

	responses := map[string]*collection.Response{}
	for _, outcome := range outcomes {
		qid := outcome.Key.QID
		if outcome.Result == nil {
			skips = append(skips, Skip{QID: qid, StepIndex: outcome.Key.StepIndex})
			continue
		}

		if _, ok := responses[qid]; !ok {
			orig, ok := original.Responses[qid]
			if !ok {
				return nil, nil, fmt.Errorf("aggregating results: problem %q is not in the input collection", qid)
			}
			if orig.Kind != collection.KindStructured {
				return nil, nil, fmt.Errorf("aggregating results: problem %q cannot carry step results, its metadata would be lost", qid)
			}
			responses[qid] = orig.MetaCopy()
		}
		grouped[qid] = append(grouped[qid], outcome)
	}

	for qid, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Key.StepIndex < group[j].Key.StepIndex
		})
		for _, outcome := range group {
			responses[qid].Results = append(responses[qid].Results, outcome.Result)
		}
	}

	out := &collection.Collection{
		Responses:         responses,
		ModelID:           modelID,
		SplitSuccessCount: original.SplitSuccessCount,
		SplitFailureCount: original.SplitFailureCount,
		Description:       ResultDescription,
	}
	return out, skips, nil
}
