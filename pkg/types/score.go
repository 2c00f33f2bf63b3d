package types

// RiskScore is the output of the external scoring model for one transaction.
// Transaction identifiers are opaque upstream hashes, never raw account IDs.
type RiskScore struct {
	TransactionID string  `json:"transaction_id"`
	Score         float64 `json:"score"`
	ModelVersion  string  `json:"model_version"`
}
