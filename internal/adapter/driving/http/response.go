package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/emiliorios/mpgateway/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it with the given status code.
// If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeRaw writes an upstream JSON payload through unchanged.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ackResponse acknowledges a webhook delivery.
type ackResponse struct {
	OK bool `json:"ok"`
}

// TokenResponse is the JSON representation of a resolved credential.
type TokenResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresIn int64  `json:"expires_in"`
	Exp       int64  `json:"exp"`
}

// LinkedAccountResponse is the JSON representation of one linked account.
type LinkedAccountResponse struct {
	SubjectID  string `json:"subject_id"`
	Linked     bool   `json:"linked"`
	LinkedAt   string `json:"linked_at,omitempty"`
	UnlinkedAt string `json:"unlinked_at,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toTokenResponse converts a credential to the token endpoint's shape.
func toTokenResponse(cred model.Credential, now time.Time) TokenResponse {
	return TokenResponse{
		Token:     cred.AccessToken,
		UserID:    cred.SubjectID,
		ExpiresIn: int64(cred.ExpiresAt.Sub(now).Seconds()),
		Exp:       cred.ExpiresAt.UnixMilli(),
	}
}

// toLinkedAccountResponse converts a linked account to its JSON shape.
func toLinkedAccountResponse(account model.LinkedAccount) LinkedAccountResponse {
	resp := LinkedAccountResponse{
		SubjectID: account.SubjectID,
		Linked:    account.Linked,
		UpdatedAt: account.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if account.LinkedAt != nil {
		resp.LinkedAt = account.LinkedAt.UTC().Format(time.RFC3339)
	}
	if account.UnlinkedAt != nil {
		resp.UnlinkedAt = account.UnlinkedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
