// Package api implements the agent's HTTP control surface: observation
// ingress for the analysis worker plus the alert, pet, and emergency contact
// endpoints backed by the alert history store.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/escalation"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/observability"
)

// Ingress rate limits, per client IP. The analysis worker posts one
// observation per processed clip, so sustained traffic above this means a
// misbehaving producer, not a busy pet.
const (
	ingestRatePerSecond = 50
	ingestBurst         = 100
	ingestLimitWindow   = 1 * time.Minute
)

// Intake accepts observations for asynchronous processing. Satisfied by
// *escalation.Dispatcher.
type Intake interface {
	Enqueue(ctx context.Context, obs escalation.Observation) error
}

// Controller wires the echo routes to the store and the escalation intake.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	repo        repository.AlertRepository
	contactRepo repository.ContactRepository
	cache       *escalation.CachedContacts
	intake      Intake
	metrics     *observability.Metrics
	log         logger.Logger
}

// New registers all routes on e and returns the controller. cache and
// metrics may be nil; a nil cache skips invalidation on contact changes and
// nil metrics leaves the /metrics endpoint unregistered.
func New(
	e *echo.Echo,
	repo repository.AlertRepository,
	contactRepo repository.ContactRepository,
	cache *escalation.CachedContacts,
	intake Intake,
	m *observability.Metrics,
	log logger.Logger,
) *Controller {
	c := &Controller{
		Echo:        e,
		repo:        repo,
		contactRepo: contactRepo,
		cache:       cache,
		intake:      intake,
		metrics:     m,
		log:         log,
	}
	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	// Both ingress routes share one limiter store so the limit applies to
	// the producer, not to each path separately.
	ingestLimiter := middleware.RateLimiterWithConfig(c.ingestLimiterConfig())
	c.Group.POST("/alert", c.IngestObservation, ingestLimiter)
	c.Group.POST("/alert/critical", c.IngestObservation, ingestLimiter)

	c.Group.GET("/alerts", c.ListAlerts)
	c.Group.GET("/alerts/critical", c.ListCriticalAlerts)
	c.Group.GET("/alerts/:id", c.GetAlert)
	c.Group.POST("/alerts/:id/acknowledge", c.AcknowledgeAlert)
	c.Group.POST("/alerts/:id/resolve", c.ResolveAlert)
	c.Group.GET("/alerts/:id/quick-actions", c.ListQuickActions)
	c.Group.POST("/alerts/:id/quick-actions", c.CreateQuickAction)

	c.Group.GET("/pets", c.ListPets)
	c.Group.POST("/pets", c.CreatePet)

	c.Group.GET("/emergency-contacts", c.ListContacts)
	c.Group.POST("/emergency-contacts", c.CreateContact)

	c.Echo.GET("/healthz", c.Healthz)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

func (c *Controller) ingestLimiterConfig() middleware.RateLimiterConfig {
	return middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      ingestRatePerSecond,
				Burst:     ingestBurst,
				ExpiresIn: ingestLimitWindow,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many observations, slow down",
			})
		},
	}
}

// HandleError logs err and responds with a JSON error body carrying message.
// Sentinel-specific statuses are decided at the call sites; this is the
// catch-all tail of each handler.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, status int) error {
	c.log.Error(message,
		logger.Error(err),
		logger.String("path", ctx.Path()),
	)
	return ctx.JSON(status, map[string]string{"error": message})
}

// Healthz reports process liveness. Dependency health is not probed here:
// the store owns reconnects and the dispatcher never stops on its own.
func (c *Controller) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
