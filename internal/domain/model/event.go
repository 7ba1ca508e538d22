package model

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebhookEvent is one inbound Mercado Pago notification. It exists only for
// the duration of dispatch; Raw keeps the original body for connect handlers
// and logging, since the provider attaches event-specific fields we do not
// model individually.
type WebhookEvent struct {
	ID         string
	Type       string
	Action     string
	DataID     string
	SubjectID  string
	LiveMode   bool
	APIVersion string
	Raw        json.RawMessage
}

// Kind maps the provider's type string to the closed routing set.
func (e WebhookEvent) Kind() EventKind {
	switch strings.ToLower(e.Type) {
	case "payment":
		return KindPayment
	case "merchant_order":
		return KindMerchantOrder
	case "mp-connect":
		return KindConnect
	default:
		return KindUnknown
	}
}

// EventMeta carries transport-level context alongside the parsed body:
// the x-request-id header, receipt time, and the raw query/headers used
// for subject-id fallbacks.
type EventMeta struct {
	RequestID  string
	ReceivedAt time.Time
	Query      url.Values
	Header     http.Header
}

// flexID accepts JSON numbers or strings; MP sends user_id as a number on
// connect events and as a string elsewhere.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// ParseWebhookEvent decodes a notification body. Unknown fields are
// tolerated; the original bytes are preserved in Raw.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var wire struct {
		ID         flexID `json:"id"`
		Type       string `json:"type"`
		Action     string `json:"action"`
		UserID     flexID `json:"user_id"`
		APIVersion string `json:"api_version"`
		LiveMode   bool   `json:"live_mode"`
		Data       *struct {
			ID flexID `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook body: %w", err)
	}

	ev := WebhookEvent{
		ID:         string(wire.ID),
		Type:       wire.Type,
		Action:     wire.Action,
		SubjectID:  string(wire.UserID),
		LiveMode:   wire.LiveMode,
		APIVersion: wire.APIVersion,
		Raw:        json.RawMessage(body),
	}
	if wire.Data != nil {
		ev.DataID = string(wire.Data.ID)
	}
	// Some payment notifications carry the id only at the top level.
	if ev.DataID == "" {
		ev.DataID = ev.ID
	}
	return ev, nil
}
