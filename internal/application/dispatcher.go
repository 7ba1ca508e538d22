package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

// PaymentProcessedFunc receives the fetched payment after a payment event is
// handled. The default implementation only logs; the composition root can
// plug in order updates or other downstream business state here.
type PaymentProcessedFunc func(ctx context.Context, payment model.Payment)

// Dispatcher routes authenticated webhook events by type and action. It runs
// after the HTTP layer has already acknowledged the sender, so every failure
// here is terminal-and-logged, never propagated: the provider's redelivery
// policy only reacts to events that were never acknowledged.
type Dispatcher struct {
	cache     *CredentialCache
	api       driven.PaymentAPI
	ledger    driven.EventLedger
	links     *LinkService
	onPayment PaymentProcessedFunc
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

// NewDispatcher creates a Dispatcher. onPayment may be nil, in which case
// handled payments are only logged. timeout bounds each detached dispatch so
// a slow external dependency cannot hold the goroutine indefinitely.
func NewDispatcher(
	cache *CredentialCache,
	api driven.PaymentAPI,
	ledger driven.EventLedger,
	links *LinkService,
	onPayment PaymentProcessedFunc,
	timeout time.Duration,
	logger *slog.Logger,
	metrics *Metrics,
) *Dispatcher {
	return &Dispatcher{
		cache:     cache,
		api:       api,
		ledger:    ledger,
		links:     links,
		onPayment: onPayment,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Dispatch processes one authenticated event to a terminal outcome. It is
// meant to be called on its own goroutine with a context independent of the
// already-answered HTTP request.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.WebhookEvent, meta model.EventMeta) model.DispatchOutcome {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	kind := ev.Kind()
	d.logger.Info("webhook event received",
		"type", ev.Type,
		"action", ev.Action,
		"data_id", ev.DataID,
		"subject_id", ev.SubjectID,
		"request_id", meta.RequestID,
	)

	var outcome model.DispatchOutcome
	switch kind {
	case model.KindPayment:
		outcome = d.dispatchPayment(ctx, ev, meta)
	case model.KindConnect:
		outcome = d.dispatchConnect(ctx, ev, meta)
	case model.KindMerchantOrder:
		// Recognized but deliberately unrouted.
		d.logger.Info("merchant_order event ignored", "data_id", ev.DataID)
		outcome = model.OutcomeUnrecognized
	default:
		d.logger.Info("unhandled event type", "type", ev.Type)
		outcome = model.OutcomeUnrecognized
	}

	d.metrics.Observe(kind, outcome)
	return outcome
}

func (d *Dispatcher) dispatchPayment(ctx context.Context, ev model.WebhookEvent, meta model.EventMeta) model.DispatchOutcome {
	if ev.DataID == "" {
		d.logger.Warn("payment event without data id", "request_id", meta.RequestID)
		return model.OutcomeUnrecognized
	}

	claimed, err := d.ledger.TryClaim(ctx, ev.DataID)
	if err != nil {
		d.logger.Error("ledger claim failed", "payment_id", ev.DataID, "error", err)
		return model.OutcomeFailed
	}
	if !claimed {
		d.logger.Info("duplicate payment event skipped", "payment_id", ev.DataID)
		return model.OutcomeDuplicate
	}

	subjectID := subjectIDFor(ev, meta)
	if subjectID == "" {
		d.logger.Error("payment event without resolvable subject", "payment_id", ev.DataID)
		d.release(ev.DataID)
		return model.OutcomeFailed
	}

	cred, ok := d.cache.GetBySubject(subjectID)
	if !ok {
		// Webhooks carry no tenant key, so without a cached credential for
		// the subject there is nothing to refresh against.
		d.logger.Error("no valid credential for subject", "subject_id", subjectID, "payment_id", ev.DataID)
		d.release(ev.DataID)
		return model.OutcomeFailed
	}

	payment, err := d.api.GetPayment(ctx, cred.AccessToken, ev.DataID)
	if err != nil {
		d.logger.Error("payment fetch failed", "payment_id", ev.DataID, "error", err)
		d.release(ev.DataID)
		return model.OutcomeFailed
	}

	d.logger.Info("payment processed",
		"payment_id", payment.ID,
		"status", payment.Status,
		"external_reference", payment.ExternalReference,
	)
	if d.onPayment != nil {
		d.onPayment(ctx, payment)
	}
	return model.OutcomeHandled
}

func (d *Dispatcher) dispatchConnect(ctx context.Context, ev model.WebhookEvent, meta model.EventMeta) model.DispatchOutcome {
	subjectID := subjectIDFor(ev, meta)
	if subjectID == "" {
		d.logger.Warn("connect event without subject id", "action", ev.Action)
		return model.OutcomeUnrecognized
	}

	var err error
	switch ev.Action {
	case model.ActionAuthorized:
		err = d.links.Authorize(ctx, subjectID)
	case model.ActionDeauthorized:
		err = d.links.Deauthorize(ctx, subjectID)
	default:
		d.logger.Info("unhandled connect action", "action", ev.Action, "subject_id", subjectID)
		return model.OutcomeUnrecognized
	}

	if err != nil {
		d.logger.Error("connect event failed", "action", ev.Action, "subject_id", subjectID, "error", err)
		return model.OutcomeFailed
	}
	return model.OutcomeHandled
}

// release drops a ledger claim after a failed attempt. Uses a fresh short
// context because the dispatch context may already be expired.
func (d *Dispatcher) release(eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.ledger.Release(ctx, eventID); err != nil {
		d.logger.Error("ledger release failed", "event_id", eventID, "error", err)
	}
}

// subjectIDFor extracts the subject id from the event body, falling back to
// the query string and then proxy headers, mirroring where the provider (and
// manual tests) may place it.
func subjectIDFor(ev model.WebhookEvent, meta model.EventMeta) string {
	if ev.SubjectID != "" {
		return ev.SubjectID
	}
	if meta.Query != nil {
		if v := meta.Query.Get("user_id"); v != "" {
			return v
		}
	}
	if meta.Header != nil {
		for _, h := range []string{"x-user-id", "x-meli-user-id", "x-mp-user-id"} {
			if v := meta.Header.Get(h); v != "" {
				return v
			}
		}
	}
	return ""
}
