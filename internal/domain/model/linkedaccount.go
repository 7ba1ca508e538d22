package model

import "time"

// LinkedAccount records the authorization state of one Mercado Pago account
// against this application, driven by mp-connect webhook events.
type LinkedAccount struct {
	ID         int64
	SubjectID  string
	Linked     bool
	LinkedAt   *time.Time
	UnlinkedAt *time.Time
	UpdatedAt  time.Time
}
