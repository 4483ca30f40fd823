package estimator

import (
	"fmt"
	"strings"
)

// Method identifies one of the estimators.
type Method int

const (
	// MethodIntegrate is plain trapezoidal double integration.
	MethodIntegrate Method = iota + 1
	// MethodHighPass is integration with a high-pass filter on displacement.
	MethodHighPass
	// MethodKalman is the scalar Kalman filter with zero-velocity updates.
	MethodKalman
)

// Methods lists every estimator in menu order.
var Methods = []Method{MethodIntegrate, MethodHighPass, MethodKalman}

var methodNames = map[Method]string{
	MethodIntegrate: "integrate",
	MethodHighPass:  "highpass",
	MethodKalman:    "kalman",
}

// File suffixes follow the naming the profile tooling has always used.
var methodSuffixes = map[Method]string{
	MethodIntegrate: "_integrated",
	MethodHighPass:  "_filtered",
	MethodKalman:    "_kalman",
}

var methodLabels = map[Method]string{
	MethodIntegrate: "Integrated",
	MethodHighPass:  "Filtered",
	MethodKalman:    "Kalman Filtered",
}

func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return "unknown"
}

// Label returns a human readable name for charts and menus.
func (m Method) Label() string {
	if l, ok := methodLabels[m]; ok {
		return l
	}
	return "Unknown"
}

// OutputSuffix returns the file name suffix used for exported results.
func (m Method) OutputSuffix() string {
	return methodSuffixes[m]
}

// ParseMethod maps a name or menu number ("1", "2", "3") to a Method.
// It is meant for command line and config boundaries only.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integrate", "integrated", "trapezoid", "1":
		return MethodIntegrate, nil
	case "highpass", "high-pass", "hp", "filtered", "2":
		return MethodHighPass, nil
	case "kalman", "zupt", "3":
		return MethodKalman, nil
	}
	return 0, fmt.Errorf("%w: unknown method %q (valid: integrate, highpass, kalman)", ErrInvalidConfig, s)
}
