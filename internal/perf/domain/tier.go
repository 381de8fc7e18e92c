package domain

// Tier is the quota classification derived from a usage percentage.
type Tier int

const (
	TierNominal Tier = iota
	TierWarning
	TierCritical
)

const (
	// WarningThreshold and CriticalThreshold are inclusive lower bounds,
	// in percent.
	WarningThreshold  = 70.0
	CriticalThreshold = 90.0
)

func (t Tier) String() string {
	switch t {
	case TierWarning:
		return "warning"
	case TierCritical:
		return "critical"
	default:
		return "nominal"
	}
}

// CliStatus maps a tier to the status shown for a CLI record.
func (t Tier) CliStatus() CliStatus {
	switch t {
	case TierWarning:
		return CliStatusHighUsage
	case TierCritical:
		return CliStatusLimitReached
	default:
		return CliStatusActive
	}
}

// UsagePercent returns used as a percentage of limit, clamped to [0,100].
// An unlimited (zero) limit always reports 0.
func UsagePercent(used, limit int) float64 {
	if limit <= 0 || used <= 0 {
		return 0
	}
	p := float64(used) / float64(limit) * 100
	if p > 100 {
		return 100
	}
	return p
}

// ClassifyPercent returns the tier for a usage percentage.
func ClassifyPercent(p float64) Tier {
	switch {
	case p >= CriticalThreshold:
		return TierCritical
	case p >= WarningThreshold:
		return TierWarning
	default:
		return TierNominal
	}
}

// ClassifyUsage returns the tier for used against limit. An unlimited
// limit is always nominal.
func ClassifyUsage(used, limit int) Tier {
	if limit == 0 {
		return TierNominal
	}
	return ClassifyPercent(UsagePercent(used, limit))
}
