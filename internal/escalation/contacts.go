package escalation

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
)

// ContactProvider supplies the active emergency contacts, highest priority
// first. The executor consults it on every Critical decision.
type ContactProvider interface {
	ActiveContacts(ctx context.Context) ([]entities.EmergencyContact, error)
}

const contactsCacheKey = "active"

// CachedContacts fronts the contact repository with a TTL cache so a burst of
// critical alerts does not hit the contacts table once per alert.
type CachedContacts struct {
	repo  repository.ContactRepository
	cache *gocache.Cache
}

// NewCachedContacts builds the provider. A zero ttl disables caching and
// every lookup goes to the repository. The cache runs without a janitor
// goroutine; with a single key, lazy expiry on Get is enough.
func NewCachedContacts(repo repository.ContactRepository, ttl time.Duration) *CachedContacts {
	var c *gocache.Cache
	if ttl > 0 {
		c = gocache.New(ttl, 0)
	}
	return &CachedContacts{repo: repo, cache: c}
}

func (p *CachedContacts) ActiveContacts(ctx context.Context) ([]entities.EmergencyContact, error) {
	if p.cache != nil {
		if v, ok := p.cache.Get(contactsCacheKey); ok {
			return v.([]entities.EmergencyContact), nil
		}
	}
	contacts, err := p.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.Set(contactsCacheKey, contacts, gocache.DefaultExpiration)
	}
	return contacts, nil
}

// Invalidate drops the cached list so the next critical alert sees contact
// changes made through the admin API.
func (p *CachedContacts) Invalidate() {
	if p.cache != nil {
		p.cache.Delete(contactsCacheKey)
	}
}
