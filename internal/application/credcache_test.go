package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

type stubBroker struct {
	mu    sync.Mutex
	calls atomic.Int64
	grant driven.BrokerGrant
	err   error
	block chan struct{} // when non-nil, Resolve waits on it
}

func (b *stubBroker) Resolve(_ context.Context, _ model.TenantKey) (driven.BrokerGrant, error) {
	b.calls.Add(1)
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grant, b.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCredentialCache_ResolveHitSkipsBroker(t *testing.T) {
	broker := &stubBroker{}
	cache := NewCredentialCache(broker, testLogger())

	key := model.TenantKey{Business: "acme", Mode: "prod"}
	cache.Put(model.Credential{
		Tenant:      key,
		SubjectID:   "777",
		AccessToken: "tok-cached",
		ExpiresAt:   time.Now().Add(time.Hour),
		Origin:      model.OriginManual,
	})

	cred, err := cache.Resolve(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "tok-cached", cred.AccessToken)
	assert.EqualValues(t, 0, broker.calls.Load(), "cache hit must not invoke the broker")
}

func TestCredentialCache_ResolveRefreshesExpiredEntry(t *testing.T) {
	broker := &stubBroker{grant: driven.BrokerGrant{
		AccessToken: "tok-fresh",
		SubjectID:   "777",
		ExpiresIn:   3600,
	}}
	cache := NewCredentialCache(broker, testLogger())

	key := model.TenantKey{Business: "acme", Mode: "prod"}
	cache.Put(model.Credential{
		Tenant:      key,
		SubjectID:   "777",
		AccessToken: "tok-stale",
		ExpiresAt:   time.Now().Add(-time.Minute),
	})

	before := time.Now()
	cred, err := cache.Resolve(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, "tok-fresh", cred.AccessToken)
	assert.Equal(t, model.OriginBroker, cred.Origin)
	assert.EqualValues(t, 1, broker.calls.Load())

	// TTL = expires_in minus the 60s safety margin.
	assert.WithinDuration(t, before.Add(3540*time.Second), cred.ExpiresAt, 2*time.Second)
}

func TestCredentialCache_TTLFloorAndFallback(t *testing.T) {
	t.Run("short expires_in clamps to 30s", func(t *testing.T) {
		broker := &stubBroker{grant: driven.BrokerGrant{
			AccessToken: "tok", SubjectID: "1", ExpiresIn: 45,
		}}
		cache := NewCredentialCache(broker, testLogger())

		before := time.Now()
		cred, err := cache.Resolve(context.Background(), model.TenantKey{Business: "a", Mode: "m"})
		require.NoError(t, err)
		assert.WithinDuration(t, before.Add(30*time.Second), cred.ExpiresAt, 2*time.Second)
	})

	t.Run("absent expires_in uses 55m fallback", func(t *testing.T) {
		broker := &stubBroker{grant: driven.BrokerGrant{
			AccessToken: "tok", SubjectID: "1",
		}}
		cache := NewCredentialCache(broker, testLogger())

		before := time.Now()
		cred, err := cache.Resolve(context.Background(), model.TenantKey{Business: "a", Mode: "m"})
		require.NoError(t, err)
		assert.WithinDuration(t, before.Add(55*time.Minute), cred.ExpiresAt, 2*time.Second)
	})
}

func TestCredentialCache_ResolveBrokerFailure(t *testing.T) {
	broker := &stubBroker{err: driven.ErrCredentialUnavailable}
	cache := NewCredentialCache(broker, testLogger())

	_, err := cache.Resolve(context.Background(), model.TenantKey{Business: "a", Mode: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrCredentialUnavailable)
}

func TestCredentialCache_ConcurrentResolveCoalesces(t *testing.T) {
	broker := &stubBroker{
		grant: driven.BrokerGrant{AccessToken: "tok", SubjectID: "9", ExpiresIn: 3600},
		block: make(chan struct{}),
	}
	cache := NewCredentialCache(broker, testLogger())
	key := model.TenantKey{Business: "acme", Mode: "prod"}

	const waiters = 10
	var wg sync.WaitGroup
	results := make([]error, waiters)
	wg.Add(waiters)
	for i := range waiters {
		go func() {
			defer wg.Done()
			_, results[i] = cache.Resolve(context.Background(), key)
		}()
	}

	// Give the waiters time to pile onto the in-flight refresh, then let it
	// settle.
	time.Sleep(50 * time.Millisecond)
	close(broker.block)
	wg.Wait()

	for i, err := range results {
		assert.NoError(t, err, "waiter %d", i)
	}
	assert.EqualValues(t, 1, broker.calls.Load(), "concurrent resolves must share one broker call")
}

func TestCredentialCache_GetBySubjectPicksLatestValid(t *testing.T) {
	cache := NewCredentialCache(&stubBroker{}, testLogger())

	now := time.Now()
	cache.Put(model.Credential{
		Tenant: model.TenantKey{Business: "acme", Mode: "test"}, SubjectID: "555",
		AccessToken: "tok-short", ExpiresAt: now.Add(10 * time.Minute),
	})
	cache.Put(model.Credential{
		Tenant: model.TenantKey{Business: "acme", Mode: "prod"}, SubjectID: "555",
		AccessToken: "tok-long", ExpiresAt: now.Add(time.Hour),
	})
	cache.Put(model.Credential{
		Tenant: model.TenantKey{Business: "other", Mode: "prod"}, SubjectID: "555",
		AccessToken: "tok-expired", ExpiresAt: now.Add(-time.Minute),
	})

	cred, ok := cache.GetBySubject("555")
	require.True(t, ok)
	assert.Equal(t, "tok-long", cred.AccessToken)
}

func TestCredentialCache_GetBySubjectAllExpired(t *testing.T) {
	cache := NewCredentialCache(&stubBroker{}, testLogger())
	cache.Put(model.Credential{
		Tenant: model.TenantKey{Business: "acme", Mode: "prod"}, SubjectID: "555",
		AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Second),
	})

	_, ok := cache.GetBySubject("555")
	assert.False(t, ok)

	_, ok = cache.GetBySubject("nobody")
	assert.False(t, ok)
}

func TestCredentialCache_PutReplacesSameTenantInSubjectIndex(t *testing.T) {
	cache := NewCredentialCache(&stubBroker{}, testLogger())
	key := model.TenantKey{Business: "acme", Mode: "prod"}

	cache.Put(model.Credential{
		Tenant: key, SubjectID: "555",
		AccessToken: "tok-v1", ExpiresAt: time.Now().Add(time.Hour),
	})
	cache.Put(model.Credential{
		Tenant: key, SubjectID: "555",
		AccessToken: "tok-v2", ExpiresAt: time.Now().Add(2 * time.Hour),
	})

	cred, ok := cache.GetByTenant(key)
	require.True(t, ok)
	assert.Equal(t, "tok-v2", cred.AccessToken)

	// The subject index must hold one entry for the tenant, not two.
	bySubject, ok := cache.GetBySubject("555")
	require.True(t, ok)
	assert.Equal(t, "tok-v2", bySubject.AccessToken)

	cache.mu.RLock()
	defer cache.mu.RUnlock()
	assert.Len(t, cache.bySubject["555"], 1)
}
