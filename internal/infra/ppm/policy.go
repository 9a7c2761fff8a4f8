package ppm

import "fmt"

// ValuePolicy decides what happens to samples outside [0, min(maxColor, 255)].
type ValuePolicy string

const (
	// PolicyReject fails the decode with a format error.
	PolicyReject ValuePolicy = "reject"
	// PolicyClamp saturates to the nearest bound.
	PolicyClamp ValuePolicy = "clamp"
	// PolicyWrap keeps the low 8 bits, as a plain uint8 conversion would.
	PolicyWrap ValuePolicy = "wrap"
)

func ParseValuePolicy(s string) (ValuePolicy, error) {
	switch p := ValuePolicy(s); p {
	case PolicyReject, PolicyClamp, PolicyWrap:
		return p, nil
	default:
		return "", fmt.Errorf("invalid value policy %q (expected reject|clamp|wrap)", s)
	}
}

// Apply maps sample v into [0, limit]. ok is false when the policy rejects v.
func (p ValuePolicy) Apply(v, limit int) (uint8, bool) {
	if v >= 0 && v <= limit {
		return uint8(v), true
	}
	switch p {
	case PolicyClamp:
		if v < 0 {
			return 0, true
		}
		return uint8(limit), true
	case PolicyWrap:
		return uint8(v), true
	default:
		return 0, false
	}
}
