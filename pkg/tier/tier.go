// Package tier classifies graph nodes into visual tiers by connectivity.
//
// Tiers are a pure function of degree. They are never stored alongside a node;
// callers recompute them whenever the edge set changes.
package tier

import (
	"fmt"
	"math"
)

// Tier is the visual category of a node.
type Tier int

const (
	Leaf Tier = iota
	Medium
	Hub
)

func (t Tier) String() string {
	switch t {
	case Hub:
		return "hub"
	case Medium:
		return "medium"
	default:
		return "leaf"
	}
}

// MarshalText lets tiers appear as "hub", "medium" or "leaf" in JSON.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "hub":
		*t = Hub
	case "medium":
		*t = Medium
	case "leaf":
		*t = Leaf
	default:
		return fmt.Errorf("unknown tier %q", b)
	}
	return nil
}

// Thresholds are the minimum degrees of the hub and medium tiers.
type Thresholds struct {
	Hub    int `json:"hub"`
	Medium int `json:"medium"`
}

// DefaultThresholds puts degree >= 50 in the hub tier and degree >= 5 in the medium tier.
func DefaultThresholds() Thresholds {
	return Thresholds{Hub: 50, Medium: 5}
}

const (
	leafScale = 0.8
	maxScale  = 2.5
)

// Classify maps a degree to a tier using the default thresholds.
func Classify(degree int) Tier {
	return DefaultThresholds().Classify(degree)
}

// Classify maps a degree to a tier. A higher degree never yields a less
// central tier than a lower one.
func (th Thresholds) Classify(degree int) Tier {
	switch {
	case degree >= th.Hub:
		return Hub
	case degree >= th.Medium:
		return Medium
	default:
		return Leaf
	}
}

// Scale returns the glyph size factor for a node. Leaves share one small
// scale, medium and hub nodes grow with sqrt(degree).
func Scale(degree int, t Tier) float64 {
	if degree < 0 {
		degree = 0
	}
	root := math.Sqrt(float64(degree))
	switch t {
	case Hub:
		return math.Min(maxScale, 1.0+0.1*root)
	case Medium:
		return math.Min(maxScale, 0.9+0.1*root)
	default:
		return leafScale
	}
}

// Values holds one number per tier, e.g. a collision radius.
type Values struct {
	Hub    float64 `json:"hub"`
	Medium float64 `json:"medium"`
	Leaf   float64 `json:"leaf"`
}

// For returns the value for t.
func (v Values) For(t Tier) float64 {
	switch t {
	case Hub:
		return v.Hub
	case Medium:
		return v.Medium
	default:
		return v.Leaf
	}
}

// Size is the display box of a node glyph.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sizes holds the display box per tier.
type Sizes struct {
	Hub    Size `json:"hub"`
	Medium Size `json:"medium"`
	Leaf   Size `json:"leaf"`
}

// For returns the display box for t.
func (s Sizes) For(t Tier) Size {
	switch t {
	case Hub:
		return s.Hub
	case Medium:
		return s.Medium
	default:
		return s.Leaf
	}
}
