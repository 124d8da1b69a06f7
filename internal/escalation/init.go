package escalation

import (
	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/observability/metrics"
)

// Pipeline bundles the wired escalation components. Engine is exposed for
// synchronous callers (tests, admin tools), Dispatcher is the production
// intake, and Contacts is shared with the API layer so contact mutations can
// invalidate the cache.
type Pipeline struct {
	Engine     *Engine
	Dispatcher *Dispatcher
	Contacts   *CachedContacts
}

// Initialize wires the escalation pipeline: policy, contact cache, executor,
// engine, and the partitioned dispatcher. The dispatcher is accepting
// observations when Initialize returns; the caller owns Stop.
//
// hub may be nil, in which case playback commands are logged instead of
// published. metrics may be nil. Everything else must not be.
func Initialize(
	settings *conf.Settings,
	repo repository.AlertRepository,
	contacts repository.ContactRepository,
	hub PlaybackPublisher,
	notifier Notifier,
	m *metrics.Monitor,
	log logger.Logger,
) *Pipeline {
	if hub == nil {
		hub = NewLogPublisher(log)
	}

	policy := NewPolicy(settings.Policy)
	provider := NewCachedContacts(contacts, settings.Contacts.CacheTTL.Std())
	executor := NewExecutor(repo, provider, hub, notifier, m, log, settings.Executor)
	engine := NewEngine(repo, policy, executor, m, log, settings.MonitoringWindow())
	dispatcher := NewDispatcher(engine, m, log, settings.Queue)

	log.Info("escalation engine initialized",
		logger.Int("partitions", settings.Queue.Partitions),
		logger.Int("moderate_at", settings.Policy.ModerateAt),
		logger.Int("notify_at", settings.Policy.NotifyAt),
		logger.Int("critical_at", settings.Policy.CriticalAt),
		logger.Duration("monitoring_window", settings.MonitoringWindow()),
	)

	return &Pipeline{
		Engine:     engine,
		Dispatcher: dispatcher,
		Contacts:   provider,
	}
}
