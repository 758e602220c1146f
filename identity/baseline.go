package identity

// Baseline is a stored summary of an identity's historically normal behavior.
// Baselines are learned and persisted by the surrounding platform; the engine
// only reads them.
type Baseline struct {
	// IdentityID is the identity this baseline describes.
	IdentityID string `json:"identity_id"`

	// Resources is the set of API resources the identity has historically used.
	Resources []string `json:"resources,omitempty"`

	// ActiveHours is the set of hour-of-day values (0-23) during which the
	// identity has historically been active. Empty means unspecified, in
	// which case DefaultActiveHours applies.
	ActiveHours []int `json:"active_hours,omitempty"`

	// Regions is the set of geographic regions the identity has historically
	// operated from.
	Regions []string `json:"regions,omitempty"`
}

// DefaultActiveHours returns the business-hours default (9 through 17
// inclusive) used when a baseline does not specify active hours.
func DefaultActiveHours() []int {
	hours := make([]int, 0, 9)
	for h := 9; h <= 17; h++ {
		hours = append(hours, h)
	}
	return hours
}

// EffectiveHours returns the baseline's active-hour set, falling back to
// DefaultActiveHours when none are recorded.
func (b *Baseline) EffectiveHours() []int {
	if b == nil || len(b.ActiveHours) == 0 {
		return DefaultActiveHours()
	}
	return b.ActiveHours
}
