package types

type GuardrailVerdict struct {
	Passed        bool     `json:"passed"`
	ViolatedRules []string `json:"violated_rules,omitempty"`
}

// NarrativeAttempt records one generation request against a frozen Decision.
// Many attempts may reference the same Decision; none may alter it.
type NarrativeAttempt struct {
	AttemptID     string           `json:"attempt_id"`
	TransactionID string           `json:"transaction_id"`
	Draft         *string          `json:"draft,omitempty"`
	Verdict       GuardrailVerdict `json:"verdict"`
	Outcome       string           `json:"outcome"`
	Suppressed    bool             `json:"suppressed"`
	LatencyMS     int64            `json:"latency_ms"`
	Generator     string           `json:"generator"`
	PolicyVersion string           `json:"policy_version"`
	Error         string           `json:"error,omitempty"`
	CreatedAt     string           `json:"created_at"`
}
