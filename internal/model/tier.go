package model

import (
	"strconv"
	"strings"
)

// Tier is the priority class a task is routed to at enqueue time.
type Tier string

const (
	TierHigh   Tier = "high"
	TierNormal Tier = "normal"
	TierLow    Tier = "low"
)

// Tiers lists every tier in strict consumption order.
func Tiers() []Tier { return []Tier{TierHigh, TierNormal, TierLow} }

func (t Tier) String() string { return string(t) }

func (t Tier) Valid() bool {
	return t == TierHigh || t == TierNormal || t == TierLow
}

// ParseTier normalizes input; empty => normal. Numeric priority levels are accepted.
// Returns (value, true) if valid; otherwise (normal, false).
func ParseTier(s string) (Tier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "normal":
		return TierNormal, true
	case "high":
		return TierHigh, true
	case "low", "bulk":
		return TierLow, true
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return TierFromPriority(n), true
	}
	return TierNormal, false
}

// TierFromPriority maps a priority level: 1 => high, 2 => normal, anything else => low.
func TierFromPriority(level int) Tier {
	switch level {
	case 1:
		return TierHigh
	case 2:
		return TierNormal
	default:
		return TierLow
	}
}

// Priority is the inverse of TierFromPriority.
func (t Tier) Priority() int {
	switch t {
	case TierHigh:
		return 1
	case TierNormal:
		return 2
	default:
		return 3
	}
}
