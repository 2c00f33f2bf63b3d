package types

type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReview  Action = "REVIEW"
	ActionBlock   Action = "BLOCK"
)

func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionReview, ActionBlock:
		return true
	default:
		return false
	}
}

// Decision is created exactly once per transaction and never mutated. It is
// the single source of truth that narrative and audit steps must agree with.
type Decision struct {
	TransactionID string   `json:"transaction_id"`
	Action        Action   `json:"action"`
	Score         float64  `json:"score"`
	ModelVersion  string   `json:"model_version"`
	PolicyVersion string   `json:"policy_version"`
	Threshold     float64  `json:"threshold"`
	ReasonCodes   []string `json:"reason_codes,omitempty"`
	CreatedAt     string   `json:"created_at"`
}
