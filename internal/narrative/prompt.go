package narrative

import (
	"fmt"
	"strings"

	"github.com/fraudlens/fraudlens/pkg/types"
)

// BuildPrompt renders the generation request for one frozen decision. Only
// the evidence payload is exposed; the rules section mirrors the guardrail
// categories so a compliant generator rarely trips them.
func BuildPrompt(d types.Decision, ev types.AttributionEvidence) string {
	var drivers strings.Builder
	for _, drv := range ev.Drivers {
		fmt.Fprintf(&drivers, "- %s: actual value is %.2f (risk impact: %.2f)\n",
			drv.Feature, drv.Value, drv.Contribution)
	}

	return fmt.Sprintf(`You are an expert fraud analyst assistant.
Write a brief, professional 2-3 sentence summary explaining this decision.

RULES:
- ONLY use the data provided below.
- DO NOT mention geography, currencies, merchants, or device data.
- DO NOT suggest a different decision; the decision is final.
- Be objective and concise.

DATA:
Decision: %s
Risk Score: %.2f
Policy Threshold: %.2f

Top Risk Drivers (features pushing the score):
%s`, d.Action, d.Score, d.Threshold, drivers.String())
}
