package policy

import (
	"errors"
	"fmt"
)

var ErrNoPolicy = errors.New("no policy artifact loaded")

type CurvePoint struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	NetValue  float64 `yaml:"net_value" json:"net_value"`
}

type Economics struct {
	MarginRate        float64 `yaml:"margin_rate" json:"margin_rate"`
	FrictionCost      float64 `yaml:"friction_cost" json:"friction_cost"`
	FraudLossFraction float64 `yaml:"fraud_loss_fraction" json:"fraud_loss_fraction"`
}

// Artifact is a frozen decision policy. It is created once per optimization
// run and superseded, never edited, by a new version.
type Artifact struct {
	Version      string       `yaml:"version" json:"version"`
	ModelVersion string       `yaml:"model_version" json:"model_version"`
	EffectiveAt  string       `yaml:"effective_at" json:"effective_at"`
	Threshold    float64      `yaml:"threshold" json:"threshold"`
	ReviewMargin float64      `yaml:"review_margin" json:"review_margin"`
	Economics    Economics    `yaml:"economics" json:"economics"`
	NetValue     float64      `yaml:"net_value" json:"net_value"`
	Curve        []CurvePoint `yaml:"curve" json:"curve"`
}

func (a Artifact) Validate() error {
	if a.Version == "" {
		return fmt.Errorf("policy version is required")
	}
	if a.ModelVersion == "" {
		return fmt.Errorf("model_version is required")
	}
	if a.Threshold < 0 || a.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0,1]", a.Threshold)
	}
	if a.ReviewMargin < 0 || a.ReviewMargin > a.Threshold {
		return fmt.Errorf("review_margin %v outside [0,threshold]", a.ReviewMargin)
	}
	if a.Economics.MarginRate <= 0 {
		return fmt.Errorf("economics.margin_rate must be positive")
	}
	if a.Economics.FrictionCost < 0 {
		return fmt.Errorf("economics.friction_cost must not be negative")
	}
	if a.Economics.FraudLossFraction <= 0 || a.Economics.FraudLossFraction > 1 {
		return fmt.Errorf("economics.fraud_loss_fraction outside (0,1]")
	}
	return nil
}
