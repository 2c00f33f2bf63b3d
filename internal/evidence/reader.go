package evidence

import (
	"fmt"
	"math"
	"sort"

	"github.com/fraudlens/fraudlens/pkg/types"
)

// DefaultTopK matches the driver count the scoring side exports per
// transaction.
const DefaultTopK = 5

// Reader normalizes raw attribution output into canonical evidence records.
type Reader struct {
	// TopK truncates the driver list after sorting. Zero keeps all drivers.
	TopK int
}

// Normalize validates and canonicalizes a raw attribution vector: feature
// names must be unique, drivers are sorted by descending absolute
// contribution (ties by feature name), and the list is truncated to TopK.
func (r Reader) Normalize(txnID, modelVersion string, raw []types.FeatureAttribution) (types.AttributionEvidence, error) {
	if txnID == "" {
		return types.AttributionEvidence{}, fmt.Errorf("missing transaction id")
	}
	if modelVersion == "" {
		return types.AttributionEvidence{}, fmt.Errorf("missing model version")
	}
	if len(raw) == 0 {
		return types.AttributionEvidence{}, fmt.Errorf("empty attribution vector for %s", txnID)
	}

	seen := make(map[string]struct{}, len(raw))
	drivers := make([]types.FeatureAttribution, 0, len(raw))
	for _, d := range raw {
		if d.Feature == "" {
			return types.AttributionEvidence{}, fmt.Errorf("unnamed feature in attribution vector for %s", txnID)
		}
		if _, ok := seen[d.Feature]; ok {
			return types.AttributionEvidence{}, fmt.Errorf("duplicate feature %q in attribution vector for %s", d.Feature, txnID)
		}
		seen[d.Feature] = struct{}{}
		drivers = append(drivers, d)
	}

	sort.SliceStable(drivers, func(i, j int) bool {
		ai, aj := math.Abs(drivers[i].Contribution), math.Abs(drivers[j].Contribution)
		if ai != aj {
			return ai > aj
		}
		return drivers[i].Feature < drivers[j].Feature
	})

	if r.TopK > 0 && len(drivers) > r.TopK {
		drivers = drivers[:r.TopK]
	}

	return types.AttributionEvidence{
		TransactionID: txnID,
		ModelVersion:  modelVersion,
		Drivers:       drivers,
	}, nil
}
