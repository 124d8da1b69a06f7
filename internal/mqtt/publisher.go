package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/petpulse/petpulse-go/internal/escalation"
)

// HubPublisher feeds executor playback commands to the hub broker. Each
// command goes to <topic_prefix>/<pet_id> as JSON, so hub automations can
// subscribe per pet or with a single-level wildcard for all of them.
type HubPublisher struct {
	client Client
	prefix string
}

// NewHubPublisher wraps a connected (or connecting) client.
func NewHubPublisher(client Client, topicPrefix string) *HubPublisher {
	return &HubPublisher{
		client: client,
		prefix: strings.TrimSuffix(topicPrefix, "/"),
	}
}

// Publish implements the executor's playback interface.
func (p *HubPublisher) Publish(ctx context.Context, cmd escalation.PlaybackCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.Topic(cmd.PetID), string(payload))
}

// Topic returns the hub topic for one pet's playback commands.
func (p *HubPublisher) Topic(petID string) string {
	return p.prefix + "/" + petID
}
