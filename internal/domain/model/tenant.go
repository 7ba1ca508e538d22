package model

import "strings"

// TenantKey identifies which business and environment a credential belongs to.
// Business is the company identifier; Mode distinguishes environments of the
// same business (e.g. "prod", "test").
type TenantKey struct {
	Business string
	Mode     string
}

// String returns the canonical "business:mode" cache key form.
func (k TenantKey) String() string {
	return strings.TrimSpace(k.Business + ":" + k.Mode)
}

// IsZero reports whether both components are empty.
func (k TenantKey) IsZero() bool {
	return k.Business == "" && k.Mode == ""
}
