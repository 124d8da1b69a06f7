package escalation

import (
	"context"
	"time"

	"github.com/petpulse/petpulse-go/internal/logger"
)

// PlaybackCommand is the message published to the smart-home hub to start a
// comfort action near the pet: a playlist, the owner's voice note, a treat
// dispenser pulse, or an environment change.
type PlaybackCommand struct {
	PetID    string    `json:"pet_id"`
	AlertID  string    `json:"alert_id"`
	Action   string    `json:"action"`
	Detail   string    `json:"detail,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// PlaybackPublisher delivers playback commands to the hub. Publish must be
// safe for concurrent use and should honor ctx for its network deadline. The
// executor retries failed publishes, so implementations do not retry
// themselves.
type PlaybackPublisher interface {
	Publish(ctx context.Context, cmd PlaybackCommand) error
}

// LogPublisher is the publisher used when no hub transport is configured. It
// records the command at info level and always succeeds, which keeps the
// decision pipeline exercisable on a bare laptop.
type LogPublisher struct {
	log logger.Logger
}

// NewLogPublisher returns a publisher that only logs.
func NewLogPublisher(log logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, cmd PlaybackCommand) error {
	p.log.Info("playback command (no hub configured)",
		logger.String("pet_id", cmd.PetID),
		logger.String("alert_id", cmd.AlertID),
		logger.String("action", cmd.Action),
		logger.String("detail", cmd.Detail),
	)
	return nil
}
