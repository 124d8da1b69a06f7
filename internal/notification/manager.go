package notification

import (
	"sync"

	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/observability/metrics"
)

var (
	instance *Service
	initErr  error
	once     sync.Once
	mu       sync.RWMutex
)

// Initialize builds the process-wide notification service. Only the first
// call constructs anything; later calls return the first result.
func Initialize(settings conf.NotificationSettings, m *metrics.Notification, log logger.Logger) (*Service, error) {
	once.Do(func() {
		svc, err := NewService(settings, m, log)
		mu.Lock()
		defer mu.Unlock()
		instance, initErr = svc, err
	})
	mu.RLock()
	defer mu.RUnlock()
	return instance, initErr
}

// GetService returns the process-wide service, or nil before Initialize.
func GetService() *Service {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// IsInitialized reports whether Initialize has built a service.
func IsInitialized() bool {
	return GetService() != nil
}
