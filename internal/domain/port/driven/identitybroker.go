// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/emiliorios/mpgateway/internal/domain/model"
)

// ErrCredentialUnavailable indicates the identity broker could not produce a
// usable credential for a tenant, whether because the broker rejected the
// request, returned an incomplete grant, or was unreachable. Callers treat
// all causes identically; the wrapped detail exists for logging only.
var ErrCredentialUnavailable = errors.New("credential unavailable")

// BrokerGrant is the raw credential material returned by the identity broker.
// ExpiresIn is in seconds; zero means the broker declared no expiry.
type BrokerGrant struct {
	AccessToken string
	SubjectID   string
	ExpiresIn   int64
}

// IdentityBroker is the external service that issues short-lived bearer
// credentials for a tenant on demand. The call is idempotent; concurrent
// resolutions for the same tenant are safe.
type IdentityBroker interface {
	// Resolve exchanges a tenant key for a fresh grant. Any failure is
	// reported as an error wrapping ErrCredentialUnavailable.
	Resolve(ctx context.Context, key model.TenantKey) (BrokerGrant, error)
}
