package driven

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emiliorios/mpgateway/internal/domain/model"
)

// PaymentAPI is the bearer-authenticated Mercado Pago resource API.
// GetPayment is typed because the webhook dispatcher inspects the result;
// the remaining operations are plain forwarding for the proxy endpoints and
// pass the provider's JSON through untouched.
type PaymentAPI interface {
	// GetPayment fetches one payment by id.
	GetPayment(ctx context.Context, token, paymentID string) (model.Payment, error)

	// SearchStores lists the stores (sucursales) of the given account.
	SearchStores(ctx context.Context, token, subjectID string) (json.RawMessage, error)

	// CreateStore creates a store under the given account.
	CreateStore(ctx context.Context, token, subjectID string, body json.RawMessage) (json.RawMessage, error)

	// ListPOS lists point-of-sale terminals (cajas).
	ListPOS(ctx context.Context, token string) (json.RawMessage, error)

	// CreatePOS creates a point-of-sale terminal.
	CreatePOS(ctx context.Context, token string, body json.RawMessage) (json.RawMessage, error)

	// CreateOrder creates a merchant order.
	CreateOrder(ctx context.Context, token string, body json.RawMessage) (json.RawMessage, error)

	// GetOrder fetches a merchant order by id.
	GetOrder(ctx context.Context, token, orderID string) (json.RawMessage, error)

	// GetUser fetches the account profile for a subject id.
	GetUser(ctx context.Context, token, subjectID string) (json.RawMessage, error)
}

// RemoteError carries the provider's HTTP status and response body so the
// proxy endpoints can pass failures through instead of flattening them to 500.
type RemoteError struct {
	StatusCode int
	Body       []byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote api status %d", e.StatusCode)
}
