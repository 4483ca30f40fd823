// Package units provides shared constants and conversion for acceleration units
package units

import "strings"

// Unit constants
const (
	MMPS2 = "mm/s2"
	CMPS2 = "cm/s2"
	MPS2  = "m/s2"
	G     = "g"
)

// StandardGravity is 1 g expressed in mm/s².
const StandardGravity = 9806.65

// ValidUnits contains all valid unit values
var ValidUnits = []string{MMPS2, CMPS2, MPS2, G}

// Normalize maps common spellings ("mm/s²", "mm_s2", "G") onto a unit constant.
// Unknown input is returned lower-cased and trimmed.
func Normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.ReplaceAll(u, "²", "2")
	u = strings.ReplaceAll(u, "_", "/")
	switch u {
	case "mm/s2", "mmps2":
		return MMPS2
	case "cm/s2", "cmps2":
		return CMPS2
	case "m/s2", "mps2":
		return MPS2
	case "g":
		return G
	}
	return u
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	u := Normalize(unit)
	for _, validUnit := range ValidUnits {
		if u == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ToMillimetresPerSecond2 converts an acceleration in the given unit to mm/s².
// The estimators work in mm/s² so velocity comes out in mm/s and
// displacement in mm.
func ToMillimetresPerSecond2(accel float64, unit string) float64 {
	switch Normalize(unit) {
	case CMPS2:
		return accel * 10
	case MPS2:
		return accel * 1000
	case G:
		return accel * StandardGravity
	default:
		return accel
	}
}

// ConvertAll converts a slice in place and returns it.
func ConvertAll(accel []float64, unit string) []float64 {
	if Normalize(unit) == MMPS2 {
		return accel
	}
	for i, a := range accel {
		accel[i] = ToMillimetresPerSecond2(a, unit)
	}
	return accel
}
