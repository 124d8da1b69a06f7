package notification

import (
	"strings"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
)

// Message is one rendered notification. Title becomes the push title or the
// email subject; Body is shared by every channel, so it stays short enough
// for an SMS-sized display.
type Message struct {
	Title string
	Body  string
}

const (
	fallbackPetName = "Your Pet"
	tierCritical    = "critical"
)

// renderAlert builds the user-facing copy for an alert. The severity label
// follows the tier that triggered the notification rather than the raw
// observation severity, so a count-driven escalation still reads as urgent.
func renderAlert(pet *entities.Pet, alert *entities.Alert, tier string) Message {
	name := fallbackPetName
	if pet != nil && strings.TrimSpace(pet.Name) != "" {
		name = pet.Name
	}

	label := "HIGH"
	title := "PetPulse Alert: " + name + " needs attention."
	if tier == tierCritical {
		label = "CRITICAL"
		title = "CRITICAL ALERT: " + name + " needs attention!"
	}

	desc := alert.Message
	if desc == "" {
		desc = "Alert triggered"
	}

	var b strings.Builder
	b.WriteString(desc)
	b.WriteString("\nSeverity: ")
	b.WriteString(label)
	if signs := entities.DecodeStringList(alert.Indicators); len(signs) > 0 {
		b.WriteString("\nSigns: ")
		b.WriteString(strings.Join(signs, "; "))
	}
	if actions := entities.DecodeStringList(alert.RecommendedActions); len(actions) > 0 {
		b.WriteString("\nTry: ")
		b.WriteString(strings.Join(actions, "; "))
	}
	return Message{Title: title, Body: b.String()}
}
