// Package httphandler is the HTTP driving adapter: the webhook receiver and
// the resource proxy endpoints.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emiliorios/mpgateway/internal/application"
	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

// Handler serves the REST API and the webhook receiver.
type Handler struct {
	cache         *application.CredentialCache
	api           driven.PaymentAPI
	dispatcher    *application.Dispatcher
	linkStore     driven.LinkStore
	webhookSecret string
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. An empty
// webhookSecret means every webhook signature fails verification.
func NewHandler(
	cache *application.CredentialCache,
	api driven.PaymentAPI,
	dispatcher *application.Dispatcher,
	linkStore driven.LinkStore,
	webhookSecret string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		cache:         cache,
		api:           api,
		dispatcher:    dispatcher,
		linkStore:     linkStore,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request-id, logging, metrics, and recovery middleware. reg may be nil
// to disable the /metrics endpoint and request metrics (used in tests).
func NewServeMux(h *Handler, logger *slog.Logger, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks/mp", h.HandleWebhook)
	mux.HandleFunc("GET /api/auth/token", h.GetToken)
	mux.HandleFunc("GET /api/sucursales", h.ListStores)
	mux.HandleFunc("POST /api/sucursales", h.CreateStore)
	mux.HandleFunc("GET /api/cajas", h.ListPOS)
	mux.HandleFunc("POST /api/cajas", h.CreatePOS)
	mux.HandleFunc("POST /api/ordenes", h.CreateOrder)
	mux.HandleFunc("GET /api/ordenes/{orderId}", h.GetOrder)
	mux.HandleFunc("POST /api/user-info", h.GetUserInfo)
	mux.HandleFunc("GET /api/links", h.ListLinks)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	var m *requestMetrics
	if reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		m = newRequestMetrics(reg)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = metricsMiddleware(m, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// HandleWebhook receives Mercado Pago notifications. The contract with the
// sender: 400 when the query lacks the event-data id, 401 on signature
// failure, 202 once the event is accepted, and 200 on internal errors after
// authentication so transient bugs do not trigger the sender's retry storm.
// All processing happens after the response, on a detached goroutine.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dataID := query.Get("data.id")
	if dataID == "" {
		dataID = query.Get("id")
	}
	if dataID == "" {
		h.logger.Warn("webhook missing data.id in query")
		writeError(w, http.StatusBadRequest, "missing data.id")
		return
	}

	requestID := r.Header.Get("x-request-id")
	signature := r.Header.Get("x-signature")

	if !application.VerifySignature(signature, requestID, dataID, h.webhookSecret) {
		h.logger.Warn("webhook signature rejected", "data_id", dataID, "request_id", requestID)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		// Already authenticated; answer 200 so the sender does not hammer us
		// over a transient read failure.
		h.logger.Error("webhook body read failed", "data_id", dataID, "error", err)
		writeJSON(w, http.StatusOK, ackResponse{OK: true})
		return
	}

	event, err := model.ParseWebhookEvent(body)
	if err != nil {
		h.logger.Error("webhook body unparsable", "data_id", dataID, "error", err)
		writeJSON(w, http.StatusOK, ackResponse{OK: true})
		return
	}
	if event.DataID == "" {
		event.DataID = dataID
	}

	meta := model.EventMeta{
		RequestID:  requestID,
		ReceivedAt: time.Now().UTC(),
		Query:      query,
		Header:     r.Header.Clone(),
	}

	// Fast acknowledgement: never make the sender wait on downstream work.
	writeJSON(w, http.StatusAccepted, ackResponse{OK: true})

	go h.dispatcher.Dispatch(context.Background(), event, meta)
}

// GetToken resolves (or refreshes) the credential for a tenant and returns
// it. Used by the front end during integration testing.
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantFromQuery(w, r)
	if !ok {
		return
	}

	cred, err := h.cache.Resolve(r.Context(), key)
	if err != nil {
		h.logger.Error("token resolution failed", "tenant", key.String(), "error", err)
		writeError(w, http.StatusBadGateway, "could not obtain credential")
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(cred, time.Now()))
}

// ListStores forwards a store search for the tenant's account.
func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, func(ctx context.Context, cred model.Credential, _ json.RawMessage) (json.RawMessage, error) {
		return h.api.SearchStores(ctx, cred.AccessToken, cred.SubjectID)
	}, false)
}

// CreateStore forwards a store creation for the tenant's account.
func (h *Handler) CreateStore(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, func(ctx context.Context, cred model.Credential, body json.RawMessage) (json.RawMessage, error) {
		return h.api.CreateStore(ctx, cred.AccessToken, cred.SubjectID, body)
	}, true)
}

// ListPOS forwards a point-of-sale listing.
func (h *Handler) ListPOS(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, func(ctx context.Context, cred model.Credential, _ json.RawMessage) (json.RawMessage, error) {
		return h.api.ListPOS(ctx, cred.AccessToken)
	}, false)
}

// CreatePOS forwards a point-of-sale creation.
func (h *Handler) CreatePOS(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, func(ctx context.Context, cred model.Credential, body json.RawMessage) (json.RawMessage, error) {
		return h.api.CreatePOS(ctx, cred.AccessToken, body)
	}, true)
}

// CreateOrder forwards a merchant order creation.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, func(ctx context.Context, cred model.Credential, body json.RawMessage) (json.RawMessage, error) {
		return h.api.CreateOrder(ctx, cred.AccessToken, body)
	}, true)
}

// GetOrder forwards a merchant order lookup.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	h.forward(w, r, func(ctx context.Context, cred model.Credential, _ json.RawMessage) (json.RawMessage, error) {
		return h.api.GetOrder(ctx, cred.AccessToken, orderID)
	}, false)
}

// GetUserInfo forwards an account profile lookup for the tenant's account.
func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, func(ctx context.Context, cred model.Credential, _ json.RawMessage) (json.RawMessage, error) {
		return h.api.GetUser(ctx, cred.AccessToken, cred.SubjectID)
	}, false)
}

// ListLinks returns all linked accounts recorded from mp-connect events.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.linkStore.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list linked accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]LinkedAccountResponse, 0, len(accounts))
	for _, account := range accounts {
		resp = append(resp, toLinkedAccountResponse(account))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// forward resolves the tenant's credential and relays one resource call,
// passing remote failures through with their original status.
func (h *Handler) forward(
	w http.ResponseWriter,
	r *http.Request,
	call func(ctx context.Context, cred model.Credential, body json.RawMessage) (json.RawMessage, error),
	readBody bool,
) {
	key, ok := tenantFromQuery(w, r)
	if !ok {
		return
	}

	var body json.RawMessage
	if readBody {
		data, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read request body")
			return
		}
		body = data
	}

	cred, err := h.cache.Resolve(r.Context(), key)
	if err != nil {
		h.logger.Error("credential resolution failed", "tenant", key.String(), "error", err)
		writeError(w, http.StatusBadGateway, "could not obtain credential")
		return
	}

	result, err := call(r.Context(), cred, body)
	if err != nil {
		var remote *driven.RemoteError
		if errors.As(err, &remote) {
			writeRaw(w, remote.StatusCode, remote.Body)
			return
		}
		h.logger.Error("resource api call failed", "tenant", key.String(), "error", err)
		writeError(w, http.StatusBadGateway, "no response from payment provider")
		return
	}

	writeRaw(w, http.StatusOK, result)
}

// tenantFromQuery extracts the _e/_m pair; writes a 400 and returns false
// when either is missing.
func tenantFromQuery(w http.ResponseWriter, r *http.Request) (model.TenantKey, bool) {
	key := model.TenantKey{
		Business: r.URL.Query().Get("_e"),
		Mode:     r.URL.Query().Get("_m"),
	}
	if key.Business == "" || key.Mode == "" {
		writeError(w, http.StatusBadRequest, "missing parameters: _e or _m")
		return model.TenantKey{}, false
	}
	return key, true
}
