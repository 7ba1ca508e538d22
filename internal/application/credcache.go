// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

const (
	// expiryMargin is subtracted from the broker's declared expires_in so a
	// credential is never handed out right at the edge of expiry.
	expiryMargin = 60 * time.Second

	// minTTL is the floor applied after the margin.
	minTTL = 30 * time.Second

	// fallbackTTL is used when the broker declares no expiry.
	fallbackTTL = 55 * time.Minute
)

// CredentialCache maps tenant keys to bearer credentials, refreshing them
// through the identity broker on expiry. It keeps two indices: tenant key →
// entry (exactly one per key, last write wins) and subject id → entries
// (one per tenant that has authenticated as that subject). Stale entries are
// filtered at read time and overwritten by the next refresh, never
// proactively deleted. State is process-lifetime only.
type CredentialCache struct {
	broker driven.IdentityBroker
	logger *slog.Logger

	mu        sync.RWMutex
	byTenant  map[string]model.Credential
	bySubject map[string][]model.Credential

	// group coalesces concurrent refreshes for the same tenant key into a
	// single in-flight broker call shared by all waiters.
	group singleflight.Group

	// now is swappable for tests.
	now func() time.Time
}

// NewCredentialCache creates an empty cache backed by the given broker.
func NewCredentialCache(broker driven.IdentityBroker, logger *slog.Logger) *CredentialCache {
	return &CredentialCache{
		broker:    broker,
		logger:    logger,
		byTenant:  make(map[string]model.Credential),
		bySubject: make(map[string][]model.Credential),
		now:       time.Now,
	}
}

// Resolve returns the cached credential for the tenant when one is still
// valid, otherwise refreshes it from the broker. Concurrent calls for the
// same expired key share one broker call.
func (c *CredentialCache) Resolve(ctx context.Context, key model.TenantKey) (model.Credential, error) {
	if cred, ok := c.GetByTenant(key); ok {
		return cred, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Re-check under the flight: a concurrent caller may have finished
		// the refresh while this one was queued.
		if cred, ok := c.GetByTenant(key); ok {
			return cred, nil
		}
		return c.refresh(ctx, key)
	})
	if err != nil {
		return model.Credential{}, err
	}
	return v.(model.Credential), nil
}

func (c *CredentialCache) refresh(ctx context.Context, key model.TenantKey) (model.Credential, error) {
	grant, err := c.broker.Resolve(ctx, key)
	if err != nil {
		return model.Credential{}, fmt.Errorf("refresh credential for %s: %w", key, err)
	}

	ttl := fallbackTTL
	if grant.ExpiresIn > 0 {
		ttl = time.Duration(grant.ExpiresIn)*time.Second - expiryMargin
		if ttl < minTTL {
			ttl = minTTL
		}
	}

	cred := model.Credential{
		Tenant:      key,
		SubjectID:   grant.SubjectID,
		AccessToken: grant.AccessToken,
		ExpiresAt:   c.now().Add(ttl),
		Origin:      model.OriginBroker,
	}
	c.Put(cred)

	c.logger.Info("credential refreshed",
		"tenant", key.String(),
		"subject_id", cred.SubjectID,
		"expires_at", cred.ExpiresAt,
	)
	return cred, nil
}

// GetByTenant returns the unexpired credential for a tenant key, if any.
func (c *CredentialCache) GetByTenant(key model.TenantKey) (model.Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cred, ok := c.byTenant[key.String()]
	if !ok || !cred.Valid(c.now()) {
		return model.Credential{}, false
	}
	return cred, true
}

// GetBySubject returns, among the entries indexed under a subject id, the one
// with the latest expiry that is still valid. Webhook events carry only the
// subject, so this is the reverse lookup path for detached processing.
func (c *CredentialCache) GetBySubject(subjectID string) (model.Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	var best model.Credential
	var found bool
	for _, cred := range c.bySubject[subjectID] {
		if !cred.Valid(now) {
			continue
		}
		if !found || cred.ExpiresAt.After(best.ExpiresAt) {
			best = cred
			found = true
		}
	}
	return best, found
}

// Put writes a credential into both indices. The tenant index replaces any
// prior entry for the same key; the subject list replaces the entry for the
// same tenant and appends otherwise.
func (c *CredentialCache) Put(cred model.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byTenant[cred.Tenant.String()] = cred

	list := c.bySubject[cred.SubjectID]
	for i, existing := range list {
		if existing.Tenant == cred.Tenant {
			list[i] = cred
			c.bySubject[cred.SubjectID] = list
			return
		}
	}
	c.bySubject[cred.SubjectID] = append(list, cred)
}
