package escalation

import (
	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/datastore/entities"
)

// Decision is the outcome of evaluating one unusual alert against the tier
// rules. Intervention is the action recorded on the alert row; NotifyUser and
// QuickAction drive the user-facing side effects.
type Decision struct {
	Tier         string
	Intervention string
	NotifyUser   bool
	QuickAction  bool
}

// Policy evaluates the tier rules for a pet's consecutive unusual count.
// It is immutable after construction and safe for concurrent use.
type Policy struct {
	moderateAt   int
	notifyAt     int
	criticalAt   int
	gateSeverity string
}

// NewPolicy builds a Policy from validated settings.
func NewPolicy(settings conf.PolicySettings) *Policy {
	return &Policy{
		moderateAt:   settings.ModerateAt,
		notifyAt:     settings.NotifyAt,
		criticalAt:   settings.CriticalAt,
		gateSeverity: settings.GateSeverity,
	}
}

// Decide maps (count, severity level, alert type) onto a Decision. Count is
// the pet's consecutive unusual count after ingesting the current alert, so
// it is always at least 1. Rules are checked in order, first match wins:
//
//  1. critical severity at any count, or count >= criticalAt: Critical.
//  2. count >= notifyAt with severity at or above the gate: Notify.
//  3. count >= moderateAt with severity at or above the gate: Moderate.
//  4. everything else: Mild.
//
// A count in the Notify or Moderate band whose severity sits below the gate
// falls through to Mild rather than the next band down. The same inputs
// always produce the same Decision, which is what makes redelivered
// observations safe to re-decide.
func (p *Policy) Decide(count int, severityLevel, alertType string) Decision {
	switch {
	case severityLevel == entities.SeverityCritical || count >= p.criticalAt:
		return Decision{
			Tier:         TierCritical,
			Intervention: InterventionNotifyUser,
			NotifyUser:   true,
			QuickAction:  true,
		}
	case count >= p.notifyAt && SeverityAtLeast(severityLevel, p.gateSeverity):
		return Decision{
			Tier:         TierNotify,
			Intervention: InterventionNotifyUser,
			NotifyUser:   true,
		}
	case count >= p.moderateAt && SeverityAtLeast(severityLevel, p.gateSeverity):
		return Decision{
			Tier:         TierModerate,
			Intervention: moderateIntervention(alertType),
		}
	default:
		return Decision{
			Tier:         TierMild,
			Intervention: mildIntervention(alertType),
		}
	}
}

// mildIntervention picks the low-touch comfort action for the first couple of
// unusual alerts. Alert types with no matching comfort action are recorded
// without acting.
func mildIntervention(alertType string) string {
	switch alertType {
	case entities.AlertTypePacing, entities.AlertTypeRestlessness:
		return InterventionAdjustEnvironment
	case entities.AlertTypeVocalization, entities.AlertTypeAttentionSeeking, entities.AlertTypeUnusualBehavior:
		return InterventionCalmingMusic
	default:
		return InterventionLogOnly
	}
}

// moderateIntervention escalates to the owner's recorded voice, except for
// vocalization where a treat interrupts the barking loop better.
func moderateIntervention(alertType string) string {
	switch alertType {
	case entities.AlertTypeVocalization:
		return InterventionDispenseTreat
	default:
		return InterventionOwnerVoice
	}
}
