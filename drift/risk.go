package drift

import "fmt"

// RiskLevel classifies a drift score.
type RiskLevel string

const (
	// RiskCritical indicates severe drift requiring immediate response.
	RiskCritical RiskLevel = "critical"

	// RiskHigh indicates significant drift that warrants investigation.
	RiskHigh RiskLevel = "high"

	// RiskMedium indicates moderate drift worth monitoring.
	RiskMedium RiskLevel = "medium"

	// RiskLow indicates behavior consistent with the baseline.
	RiskLow RiskLevel = "low"
)

// riskRanks orders risk levels for comparison. Higher ranks are riskier.
var riskRanks = map[RiskLevel]int{
	RiskCritical: 4,
	RiskHigh:     3,
	RiskMedium:   2,
	RiskLow:      1,
}

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid returns true if the risk level is one of the defined values.
func (r RiskLevel) IsValid() bool {
	_, ok := riskRanks[r]
	return ok
}

// Rank returns the comparison rank of the risk level; 0 for invalid levels.
func (r RiskLevel) Rank() int {
	return riskRanks[r]
}

// AtLeast returns true if r is as risky or riskier than other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// CompareRiskLevels compares two risk levels.
// Returns negative if r1 < r2, zero if equal, positive if r1 > r2.
func CompareRiskLevels(r1, r2 RiskLevel) int {
	return r1.Rank() - r2.Rank()
}

// ParseRiskLevel parses a string into a RiskLevel value.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid risk level: %q", s)
	}
	return r, nil
}

// AllRiskLevels returns all risk levels ordered from critical to low.
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow}
}

// Thresholds are the drift-score cut points for classification. Each level
// applies when the score is greater than or equal to its threshold.
type Thresholds struct {
	Critical float64
	High     float64
	Medium   float64
}

// DefaultThresholds returns the standard classification cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 0.8, High: 0.6, Medium: 0.3}
}

// Validate checks that the thresholds are ordered and in range.
func (t Thresholds) Validate() error {
	if t.Medium < 0 || t.Critical > 1 {
		return fmt.Errorf("thresholds must be within [0, 1]")
	}
	if !(t.Medium <= t.High && t.High <= t.Critical) {
		return fmt.Errorf("thresholds must be ordered medium <= high <= critical")
	}
	return nil
}

// Classify maps a drift score to a risk level.
func (t Thresholds) Classify(score float64) RiskLevel {
	switch {
	case score >= t.Critical:
		return RiskCritical
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ClassifyScore maps a drift score to a risk level using the default
// thresholds.
func ClassifyScore(score float64) RiskLevel {
	return DefaultThresholds().Classify(score)
}
