package types

type FeatureAttribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// AttributionEvidence is the canonical per-transaction explanation record.
// Drivers are sorted by descending absolute contribution and feature names
// are unique within one record.
type AttributionEvidence struct {
	TransactionID string               `json:"transaction_id"`
	ModelVersion  string               `json:"model_version"`
	PolicyVersion string               `json:"policy_version,omitempty"`
	Drivers       []FeatureAttribution `json:"drivers"`
}

// HasFeature reports whether the evidence names the given feature.
func (e AttributionEvidence) HasFeature(name string) bool {
	for _, d := range e.Drivers {
		if d.Feature == name {
			return true
		}
	}
	return false
}
