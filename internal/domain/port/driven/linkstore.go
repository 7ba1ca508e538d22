package driven

import (
	"context"

	"github.com/emiliorios/mpgateway/internal/domain/model"
)

// LinkStore persists the authorization state of Mercado Pago accounts
// linked to this application via mp-connect events.
type LinkStore interface {
	// Upsert inserts or replaces the record for account.SubjectID.
	Upsert(ctx context.Context, account model.LinkedAccount) error

	// Get returns the record for a subject id, or nil if none exists.
	Get(ctx context.Context, subjectID string) (*model.LinkedAccount, error)

	// List returns all records ordered by subject id.
	List(ctx context.Context) ([]model.LinkedAccount, error)
}
