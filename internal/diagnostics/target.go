package diagnostics

import (
	"fmt"
	"net/netip"
	"strings"
)

const (
	maxTargetLen = 253
	maxLabelLen  = 63
)

// ValidateTarget trims raw and returns it if it is an IP literal or a
// syntactically valid hostname. Anything else wraps ErrInvalidTarget.
func ValidateTarget(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" || len(target) > maxTargetLen {
		return "", ErrInvalidTarget
	}
	if addr, err := netip.ParseAddr(target); err == nil {
		if addr.Zone() != "" {
			return "", fmt.Errorf("%w: zoned address %q", ErrInvalidTarget, target)
		}
		return target, nil
	}
	if !isHostname(target) {
		return "", ErrInvalidTarget
	}
	return target, nil
}

// IsValidTarget reports whether ValidateTarget accepts raw.
func IsValidTarget(raw string) bool {
	_, err := ValidateTarget(raw)
	return err == nil
}

func isHostname(s string) bool {
	if len(s) == 0 || len(s) > maxTargetLen {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if !isLabel(label) {
			return false
		}
	}
	return true
}

func isLabel(label string) bool {
	if len(label) == 0 || len(label) > maxLabelLen {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !(isAlpha || isDigit || c == '-') {
			return false
		}
	}
	return true
}
