package broker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliorios/mpgateway/internal/adapter/driven/broker"
	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *broker.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return broker.NewClientWithHTTPClient(srv.URL, "3", srv.Client())
}

func TestResolve_Success(t *testing.T) {
	var gotPayload map[string]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Query().Get already undoes the URL escaping of the _i payload.
		raw := r.URL.Query().Get("_i")
		require.NotEmpty(t, raw)
		require.NoError(t, json.Unmarshal([]byte(raw), &gotPayload))

		_, _ = w.Write([]byte(`{
			"status": "success",
			"data": {"access_token": "tok-abc", "user_id": 777, "expires_in": 21600}
		}`))
	})

	grant, err := client.Resolve(context.Background(), model.TenantKey{Business: "acme", Mode: "prod"})
	require.NoError(t, err)

	assert.Equal(t, "tok-abc", grant.AccessToken)
	assert.Equal(t, "777", grant.SubjectID)
	assert.EqualValues(t, 21600, grant.ExpiresIn)

	assert.Equal(t, "acme", gotPayload["_e"])
	assert.Equal(t, "prod", gotPayload["_m"])
	assert.Equal(t, "3", gotPayload["_a"])
}

func TestResolve_StringSubjectAndNoExpiry(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"access_token":"tok","user_id":"777"}}`))
	})

	grant, err := client.Resolve(context.Background(), model.TenantKey{Business: "a", Mode: "m"})
	require.NoError(t, err)
	assert.Equal(t, "777", grant.SubjectID)
	assert.Zero(t, grant.ExpiresIn)
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"non-success status field",
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"status":"error","data":{}}`))
			},
		},
		{
			"missing access token",
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"user_id":777}}`))
			},
		},
		{
			"missing user id",
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"access_token":"tok"}}`))
			},
		},
		{
			"http error status",
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			"unparsable body",
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			_, err := client.Resolve(context.Background(), model.TenantKey{Business: "a", Mode: "m"})
			require.Error(t, err)
			assert.ErrorIs(t, err, driven.ErrCredentialUnavailable)
		})
	}
}

func TestResolve_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // force connection refused

	client := broker.NewClientWithHTTPClient(srv.URL, "3", http.DefaultClient)
	_, err := client.Resolve(context.Background(), model.TenantKey{Business: "a", Mode: "m"})

	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrCredentialUnavailable)
}
