// Package broker implements the IdentityBroker port against the credential
// broker's HTTP endpoint.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityBroker = (*Client)(nil)

// Client calls the identity broker over HTTP. The broker receives the tenant
// key as a JSON payload in the _i query parameter and answers with a
// status/data envelope carrying the access token, subject id, and optional
// expires_in seconds.
type Client struct {
	baseURL    string
	appID      string
	httpClient *http.Client
}

// NewClient creates a broker client with a bounded-timeout http.Client.
func NewClient(baseURL, appID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		appID:      appID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// Intended for testing against an httptest server.
func NewClientWithHTTPClient(baseURL, appID string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, appID: appID, httpClient: httpClient}
}

// brokerEnvelope is the broker's response shape. user_id arrives as a number
// or a string depending on the broker version, so it is decoded leniently.
type brokerEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		AccessToken string          `json:"access_token"`
		UserID      json.RawMessage `json:"user_id"`
		ExpiresIn   int64           `json:"expires_in"`
	} `json:"data"`
}

// Resolve exchanges a tenant key for a fresh grant. Every failure mode wraps
// driven.ErrCredentialUnavailable; transport errors keep their cause in the
// chain for logging.
func (c *Client) Resolve(ctx context.Context, key model.TenantKey) (driven.BrokerGrant, error) {
	payload, err := json.Marshal(map[string]string{
		"_e": key.Business,
		"_m": key.Mode,
		"_a": c.appID,
	})
	if err != nil {
		return driven.BrokerGrant{}, fmt.Errorf("%w: encode request: %v", driven.ErrCredentialUnavailable, err)
	}

	reqURL := c.baseURL + "?_i=" + url.QueryEscape(string(payload))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return driven.BrokerGrant{}, fmt.Errorf("%w: build request: %v", driven.ErrCredentialUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return driven.BrokerGrant{}, fmt.Errorf("%w: transport: %v", driven.ErrCredentialUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return driven.BrokerGrant{}, fmt.Errorf("%w: read response: %v", driven.ErrCredentialUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return driven.BrokerGrant{}, fmt.Errorf("%w: broker status %d", driven.ErrCredentialUnavailable, resp.StatusCode)
	}

	var envelope brokerEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return driven.BrokerGrant{}, fmt.Errorf("%w: decode response: %v", driven.ErrCredentialUnavailable, err)
	}
	if envelope.Status != "success" {
		return driven.BrokerGrant{}, fmt.Errorf("%w: broker status %q", driven.ErrCredentialUnavailable, envelope.Status)
	}

	subjectID := decodeSubjectID(envelope.Data.UserID)
	if envelope.Data.AccessToken == "" || subjectID == "" {
		return driven.BrokerGrant{}, fmt.Errorf("%w: incomplete grant", driven.ErrCredentialUnavailable)
	}

	return driven.BrokerGrant{
		AccessToken: envelope.Data.AccessToken,
		SubjectID:   subjectID,
		ExpiresIn:   envelope.Data.ExpiresIn,
	}, nil
}

func decodeSubjectID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
