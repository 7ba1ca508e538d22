// Package mercadopago implements the PaymentAPI port against the Mercado
// Pago REST API.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PaymentAPI = (*Client)(nil)

// Client is the Mercado Pago resource API client. The transport stack is:
//  1. httpcache (conditional request caching for idempotent GETs)
//  2. net/http with a bounded overall timeout
//
// The bearer token is supplied per call because each request may act on
// behalf of a different tenant.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client against the production base URL (or a stand-in)
// with an in-memory cache transport and the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   timeout,
		},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// Intended for testing against an httptest server.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// GetPayment fetches one payment and maps it to the domain model.
func (c *Client) GetPayment(ctx context.Context, token, paymentID string) (model.Payment, error) {
	raw, err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, token, nil)
	if err != nil {
		return model.Payment{}, fmt.Errorf("get payment %s: %w", paymentID, err)
	}

	var wire struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		StatusDetail      string      `json:"status_detail"`
		ExternalReference string      `json:"external_reference"`
		TransactionAmount float64     `json:"transaction_amount"`
		CurrencyID        string      `json:"currency_id"`
		DateApproved      string      `json:"date_approved"`
		Payer             struct {
			Email string `json:"email"`
		} `json:"payer"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.Payment{}, fmt.Errorf("decode payment %s: %w", paymentID, err)
	}

	return model.Payment{
		ID:                wire.ID.String(),
		Status:            wire.Status,
		StatusDetail:      wire.StatusDetail,
		ExternalReference: wire.ExternalReference,
		TransactionAmount: wire.TransactionAmount,
		CurrencyID:        wire.CurrencyID,
		PayerEmail:        wire.Payer.Email,
		DateApproved:      wire.DateApproved,
	}, nil
}

// SearchStores lists the stores of the given account.
func (c *Client) SearchStores(ctx context.Context, token, subjectID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/users/"+subjectID+"/stores/search", token, nil)
}

// CreateStore creates a store under the given account.
func (c *Client) CreateStore(ctx context.Context, token, subjectID string, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/users/"+subjectID+"/stores", token, body)
}

// ListPOS lists point-of-sale terminals.
func (c *Client) ListPOS(ctx context.Context, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/pos", token, nil)
}

// CreatePOS creates a point-of-sale terminal.
func (c *Client) CreatePOS(ctx context.Context, token string, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/pos", token, body)
}

// CreateOrder creates a merchant order.
func (c *Client) CreateOrder(ctx context.Context, token string, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/merchant_orders", token, body)
}

// GetOrder fetches a merchant order by id.
func (c *Client) GetOrder(ctx context.Context, token, orderID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/merchant_orders/"+orderID, token, nil)
}

// GetUser fetches the account profile for a subject id.
func (c *Client) GetUser(ctx context.Context, token, subjectID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/users/"+subjectID, token, nil)
}

// do performs one authenticated request. Non-2xx responses become a
// *driven.RemoteError carrying the provider's status and body so the proxy
// layer can pass them through.
func (c *Client) do(ctx context.Context, method, path, token string, body json.RawMessage) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return json.RawMessage(respBody), nil
}
