package layout

import "github.com/localwebb/backend/pkg/tier"

// Params groups every tunable constant of the force model. A Params value is
// passed into each run; none of these numbers are load-bearing and all of them
// are expected to be tuned per deployment.
type Params struct {
	// Iterations is the fixed step budget. There is no convergence check.
	Iterations int `json:"iterations"`

	LinkDistance float64 `json:"link_distance"`
	LinkStrength float64 `json:"link_strength"`

	// ChargeStrength is negative for repulsion.
	ChargeStrength    float64 `json:"charge_strength"`
	ChargeDistanceMax float64 `json:"charge_distance_max"`
	// Theta is the Barnes-Hut opening criterion.
	Theta float64 `json:"theta"`
	// BarnesHutThreshold is the node count from which charge is approximated.
	BarnesHutThreshold int `json:"barnes_hut_threshold"`

	CenterStrength float64 `json:"center_strength"`

	CollisionStrength float64     `json:"collision_strength"`
	CollisionPadding  float64     `json:"collision_padding"`
	Radii             tier.Values `json:"radii"`

	RadialStrength float64 `json:"radial_strength"`

	AlphaMin      float64 `json:"alpha_min"`
	VelocityDecay float64 `json:"velocity_decay"`

	RadiusPerSqrtNode float64 `json:"radius_per_sqrt_node"`
	MinBaseRadius     float64 `json:"min_base_radius"`

	Tiers tier.Thresholds `json:"tiers"`
	Sizes tier.Sizes      `json:"sizes"`
}

// DefaultParams returns the preset used when nothing else is configured.
func DefaultParams() Params {
	return Params{
		Iterations:         300,
		LinkDistance:       120,
		LinkStrength:       0.3,
		ChargeStrength:     -300,
		ChargeDistanceMax:  900,
		Theta:              0.9,
		BarnesHutThreshold: 300,
		CenterStrength:     0.02,
		CollisionStrength:  0.7,
		CollisionPadding:   6,
		Radii:              tier.Values{Hub: 60, Medium: 40, Leaf: 25},
		RadialStrength:     0.08,
		AlphaMin:           0.001,
		VelocityDecay:      0.4,
		RadiusPerSqrtNode:  60,
		MinBaseRadius:      250,
		Tiers:              tier.DefaultThresholds(),
		Sizes: tier.Sizes{
			Hub:    tier.Size{Width: 180, Height: 72},
			Medium: tier.Size{Width: 150, Height: 56},
			Leaf:   tier.Size{Width: 120, Height: 40},
		},
	}
}

// Normalize fills unset fields from DefaultParams. Strength fields may
// legitimately be zero to switch a force off, so only structural fields are
// defaulted.
func (p Params) Normalize() Params {
	d := DefaultParams()
	if p.Iterations <= 0 {
		p.Iterations = d.Iterations
	}
	if p.LinkDistance <= 0 {
		p.LinkDistance = d.LinkDistance
	}
	if p.ChargeDistanceMax <= 0 {
		p.ChargeDistanceMax = d.ChargeDistanceMax
	}
	if p.Theta <= 0 {
		p.Theta = d.Theta
	}
	if p.BarnesHutThreshold <= 0 {
		p.BarnesHutThreshold = d.BarnesHutThreshold
	}
	if p.Radii == (tier.Values{}) {
		p.Radii = d.Radii
	}
	if p.AlphaMin <= 0 || p.AlphaMin >= 1 {
		p.AlphaMin = d.AlphaMin
	}
	if p.VelocityDecay <= 0 || p.VelocityDecay >= 1 {
		p.VelocityDecay = d.VelocityDecay
	}
	if p.RadiusPerSqrtNode <= 0 {
		p.RadiusPerSqrtNode = d.RadiusPerSqrtNode
	}
	if p.MinBaseRadius <= 0 {
		p.MinBaseRadius = d.MinBaseRadius
	}
	if p.Tiers == (tier.Thresholds{}) {
		p.Tiers = d.Tiers
	}
	if p.Sizes == (tier.Sizes{}) {
		p.Sizes = d.Sizes
	}
	return p
}
