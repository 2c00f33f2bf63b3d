package guardrail

import (
	"fmt"

	"github.com/fraudlens/fraudlens/pkg/types"
)

// actionTerms maps narrated action language to the action it asserts.
// Kept as an ordered list so the first offending term is stable.
var actionTerms = []struct {
	term   string
	action types.Action
}{
	{"approve", types.ActionApprove},
	{"approved", types.ActionApprove},
	{"allow", types.ActionApprove},
	{"allowed", types.ActionApprove},
	{"block", types.ActionBlock},
	{"blocked", types.ActionBlock},
	{"decline", types.ActionBlock},
	{"declined", types.ActionBlock},
	{"review", types.ActionReview},
	{"escalate", types.ActionReview},
}

// ActionConsistencyRule fails a narrative that asserts or suggests a
// different action than the frozen decision's. The decision is already
// made; the narrative may only restate it.
type ActionConsistencyRule struct{}

func (ActionConsistencyRule) ID() string { return "action_mismatch" }

func (ActionConsistencyRule) Check(narrative string, in Input) error {
	folded := Fold(narrative)
	for _, t := range actionTerms {
		if t.action == in.Decision.Action {
			continue
		}
		if containsTerm(folded, t.term) {
			return fmt.Errorf("narrative asserts %q but decision is %s", t.term, in.Decision.Action)
		}
	}
	return nil
}
