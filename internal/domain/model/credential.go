package model

import "time"

// Credential holds one tenant's active Mercado Pago bearer credential.
// SubjectID is the remote account the token authenticates as; a single
// subject may be shared by several tenant keys (the same MP account used
// in more than one environment).
type Credential struct {
	Tenant      TenantKey
	SubjectID   string
	AccessToken string
	ExpiresAt   time.Time
	Origin      CredentialOrigin
}

// Valid reports whether the credential is usable at the given instant.
func (c Credential) Valid(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}
