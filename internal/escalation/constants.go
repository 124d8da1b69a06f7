// Package escalation provides the severity-driven intervention engine. It
// admits behavior observations, keeps the per-pet consecutive-unusual count,
// decides an intervention tier from the policy table, and executes the tier
// at most once per alert row.
package escalation

// Intervention tiers, mildest first. Critical short-circuits everything.
const (
	TierMild     = "mild"
	TierModerate = "moderate"
	TierNotify   = "notify"
	TierCritical = "critical"
)

// Intervention identifiers persisted on the alert row and carried by
// playback commands.
const (
	InterventionCalmingMusic      = "play_calming_music"
	InterventionOwnerVoice        = "play_owner_voice"
	InterventionDispenseTreat     = "dispense_treat"
	InterventionAdjustEnvironment = "adjust_environment"
	InterventionNotifyUser        = "notify_user"
	InterventionLogOnly           = "log_only"
)

// Environment adjustments (detail of InterventionAdjustEnvironment).
const (
	EnvironmentDimLights = "dim_lights"
)

// severityRank orders severity levels for the policy gates. Unknown values
// rank below info and therefore never pass a gate.
var severityRank = map[string]int{
	"info":     1,
	"low":      2,
	"medium":   3,
	"high":     4,
	"critical": 5,
}

// legacySeverityFor mirrors the analysis worker's severity_level to legacy
// severity mapping, used to backfill the legacy column when a producer only
// sends severity_level.
func legacySeverityFor(severityLevel string) string {
	switch severityLevel {
	case "info":
		return "low"
	case "low":
		return "medium"
	case "medium", "high":
		return "high"
	case "critical":
		return "critical"
	default:
		return "medium"
	}
}

// SeverityAtLeast reports whether severity ranks at or above floor. Unknown
// severities never satisfy a floor.
func SeverityAtLeast(severity, floor string) bool {
	r, ok := severityRank[severity]
	if !ok {
		return false
	}
	f, ok := severityRank[floor]
	if !ok {
		return false
	}
	return r >= f
}

// ValidSeverity reports whether the gate accepts the severity level.
func ValidSeverity(severity string) bool {
	_, ok := severityRank[severity]
	return ok
}
