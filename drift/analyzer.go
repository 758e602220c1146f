package drift

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nhiguard/engine/identity"
)

// Factor names used in analyses and recommendation generation.
const (
	FactorAPIUsage    = "api_usage"
	FactorTimePattern = "time_pattern"
	FactorGeographic  = "geographic"
)

// DefaultActivityWindow is the number of recent activity records examined
// per analysis.
const DefaultActivityWindow = 100

// recommendationThreshold is the per-factor deviation above which a
// factor-specific recommendation is generated.
const recommendationThreshold = 0.5

// Weights are the per-factor weights of the composite drift score.
// Geography carries the highest weight: a new operating region is the
// strongest standalone signal of compromise or misuse.
type Weights struct {
	APIUsage    float64
	TimePattern float64
	Geographic  float64
}

// DefaultWeights returns the standard factor weights.
func DefaultWeights() Weights {
	return Weights{APIUsage: 0.30, TimePattern: 0.25, Geographic: 0.45}
}

// Validate checks that each weight is in [0, 1].
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		FactorAPIUsage:    w.APIUsage,
		FactorTimePattern: w.TimePattern,
		FactorGeographic:  w.Geographic,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s must be in [0, 1], got %v", name, v)
		}
	}
	return nil
}

// Factor is one weighted dimension of deviation from the baseline.
type Factor struct {
	// Factor names the dimension.
	Factor string `json:"factor"`

	// Weight is the dimension's fixed contribution weight.
	Weight float64 `json:"weight"`

	// CurrentValue summarizes the observed behavior.
	CurrentValue any `json:"current_value"`

	// BaselineValue summarizes the baseline behavior.
	BaselineValue any `json:"baseline_value"`

	// Deviation is the factor-specific deviation in [0, 1].
	Deviation float64 `json:"deviation"`
}

// Analysis is a point-in-time drift assessment. It is recomputed fresh on
// every call and never mutated in place.
type Analysis struct {
	// IdentityID is the analyzed identity.
	IdentityID string `json:"identity_id"`

	// DriftScore is the weighted composite deviation, capped at 1.
	DriftScore float64 `json:"drift_score"`

	// DriftFactors are the individual weighted dimensions.
	DriftFactors []Factor `json:"drift_factors"`

	// BaselineDeviation equals DriftScore; kept as a separate field for
	// callers that surface the two concepts independently.
	BaselineDeviation float64 `json:"baseline_deviation"`

	// RiskLevel classifies the drift score.
	RiskLevel RiskLevel `json:"risk_level"`

	// Recommendations are deterministic, actionable follow-ups.
	Recommendations []string `json:"recommendations"`

	// AnalyzedAt is when the analysis ran.
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Analyzer computes drift analyses from activity history and stored
// baselines. It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	activities identity.ActivityHistory
	baselines  identity.BaselineSource
	weights    Weights
	thresholds Thresholds
	window     int
	logger     *slog.Logger
	now        func() time.Time
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithWeights overrides the factor weights.
func WithWeights(w Weights) AnalyzerOption {
	return func(a *Analyzer) {
		a.weights = w
	}
}

// WithThresholds overrides the classification thresholds.
func WithThresholds(t Thresholds) AnalyzerOption {
	return func(a *Analyzer) {
		a.thresholds = t
	}
}

// WithActivityWindow overrides the recent-activity window size.
func WithActivityWindow(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithClock overrides the analyzer clock. Intended for tests.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		a.now = now
	}
}

// NewAnalyzer creates a drift analyzer over the given collaborators.
func NewAnalyzer(activities identity.ActivityHistory, baselines identity.BaselineSource, logger *slog.Logger, opts ...AnalyzerOption) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{
		activities: activities,
		baselines:  baselines,
		weights:    DefaultWeights(),
		thresholds: DefaultThresholds(),
		window:     DefaultActivityWindow,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze computes a fresh drift analysis for the identity. A missing
// baseline yields a zero score, a low risk level, and no factors.
// Activity records missing the metadata a factor needs are skipped for
// that factor only.
func (a *Analyzer) Analyze(ctx context.Context, identityID string) (*Analysis, error) {
	if identityID == "" {
		return nil, fmt.Errorf("%w: identity ID is required", identity.ErrInvalidInput)
	}

	analysis := &Analysis{
		IdentityID:      identityID,
		DriftFactors:    []Factor{},
		RiskLevel:       RiskLow,
		Recommendations: []string{},
		AnalyzedAt:      a.now(),
	}

	baseline, err := a.baselines.GetBaseline(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("baseline for %s: %w", identityID, err)
	}
	if baseline == nil {
		return analysis, nil
	}

	activities, err := a.activities.RecentActivities(ctx, identityID, a.window)
	if err != nil {
		return nil, fmt.Errorf("activities for %s: %w", identityID, err)
	}

	analysis.DriftFactors = []Factor{
		a.apiUsageFactor(activities, baseline),
		a.timePatternFactor(activities, baseline),
		a.geographicFactor(activities, baseline),
	}

	score := 0.0
	for _, factor := range analysis.DriftFactors {
		score += factor.Deviation * factor.Weight
	}
	if score > 1 {
		score = 1
	}
	analysis.DriftScore = score
	analysis.BaselineDeviation = score
	analysis.RiskLevel = a.thresholds.Classify(score)
	analysis.Recommendations = recommendations(analysis.DriftFactors, analysis.RiskLevel)

	a.logger.Info("drift analysis completed",
		"identity_id", identityID,
		"drift_score", analysis.DriftScore,
		"risk_level", analysis.RiskLevel.String())

	return analysis, nil
}

// apiUsageFactor measures the share of API resources in the window that the
// baseline has never seen, relative to the baseline's size.
func (a *Analyzer) apiUsageFactor(activities []identity.Activity, baseline *identity.Baseline) Factor {
	current := map[string]bool{}
	for _, activity := range activities {
		if resource := activity.Resource(); resource != "" {
			current[resource] = true
		}
	}

	known := map[string]bool{}
	for _, resource := range baseline.Resources {
		known[resource] = true
	}

	newAPIs := []string{}
	for resource := range current {
		if !known[resource] {
			newAPIs = append(newAPIs, resource)
		}
	}
	sort.Strings(newAPIs)

	deviation := 0.0
	if len(known) > 0 {
		deviation = clamp01(float64(len(newAPIs)) / float64(len(known)))
	}

	return Factor{
		Factor:        FactorAPIUsage,
		Weight:        a.weights.APIUsage,
		CurrentValue:  sortedKeys(current),
		BaselineValue: append([]string{}, baseline.Resources...),
		Deviation:     deviation,
	}
}

// timePatternFactor measures the share of activity records that occurred
// outside the baseline's active hours. The ratio is over record counts, not
// distinct hours, so an off-hours burst is penalized in proportion to its
// actual volume.
func (a *Analyzer) timePatternFactor(activities []identity.Activity, baseline *identity.Baseline) Factor {
	allowed := map[int]bool{}
	for _, hour := range baseline.EffectiveHours() {
		allowed[hour] = true
	}

	currentHours := map[string]bool{}
	outside := 0
	for _, activity := range activities {
		hour := activity.Timestamp.Hour()
		currentHours[fmt.Sprintf("%02d", hour)] = true
		if !allowed[hour] {
			outside++
		}
	}

	deviation := 0.0
	if len(activities) > 0 {
		deviation = clamp01(float64(outside) / float64(len(activities)))
	}

	return Factor{
		Factor:        FactorTimePattern,
		Weight:        a.weights.TimePattern,
		CurrentValue:  sortedKeys(currentHours),
		BaselineValue: baseline.EffectiveHours(),
		Deviation:     deviation,
	}
}

// geographicFactor is binary: any activity from a region the baseline has
// never seen is maximally suspicious on its own, regardless of volume.
func (a *Analyzer) geographicFactor(activities []identity.Activity, baseline *identity.Baseline) Factor {
	current := map[string]bool{}
	for _, activity := range activities {
		if region := activity.Region(); region != "" {
			current[region] = true
		}
	}

	known := map[string]bool{}
	for _, region := range baseline.Regions {
		known[region] = true
	}

	deviation := 0.0
	for region := range current {
		if !known[region] {
			deviation = 1.0
			break
		}
	}

	return Factor{
		Factor:        FactorGeographic,
		Weight:        a.weights.Geographic,
		CurrentValue:  sortedKeys(current),
		BaselineValue: append([]string{}, baseline.Regions...),
		Deviation:     deviation,
	}
}

// recommendations derives the actionable follow-up list. It is a pure
// function of the factors and risk level.
func recommendations(factors []Factor, riskLevel RiskLevel) []string {
	recs := []string{}
	for _, factor := range factors {
		if factor.Deviation <= recommendationThreshold {
			continue
		}
		switch factor.Factor {
		case FactorAPIUsage:
			recs = append(recs, "review new API access patterns")
		case FactorTimePattern:
			recs = append(recs, "investigate off-hours activity")
		case FactorGeographic:
			recs = append(recs, "verify access from new regions")
		}
	}
	if riskLevel.AtLeast(RiskHigh) {
		recs = append(recs,
			"consider temporary credential rotation",
			"enable enhanced monitoring for this identity")
	}
	return recs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
