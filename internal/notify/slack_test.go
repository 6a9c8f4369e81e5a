package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlackServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// resty only unmarshals SetResult for JSON content types; without
		// this header Go sniffs the encoded body as text/plain.
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSlackPostSuccess(t *testing.T) {
	var got postMessageRequest
	srv := newSlackServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat.postMessage", r.URL.Path)
		require.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(postMessageResponse{OK: true})
	})

	n := NewSlack("xoxb-test", zerolog.Nop(), WithBaseURL(srv.URL))
	err := n.Post(context.Background(), "C123", "hello")
	require.NoError(t, err)
	assert.Equal(t, "C123", got.Channel)
	assert.Equal(t, "hello", got.Text)
}

func TestSlackPostRetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := newSlackServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(postMessageResponse{OK: true})
	})

	n := NewSlack("xoxb-test", zerolog.Nop(), WithBaseURL(srv.URL), WithRetry(2, time.Millisecond))
	require.NoError(t, n.Post(context.Background(), "C123", "hello"))
	assert.Equal(t, 2, calls)
}

func TestSlackPostExhaustsAttempts(t *testing.T) {
	calls := 0
	srv := newSlackServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(postMessageResponse{OK: false, Error: "channel_not_found"})
	})

	n := NewSlack("xoxb-test", zerolog.Nop(), WithBaseURL(srv.URL), WithRetry(2, time.Millisecond))
	err := n.Post(context.Background(), "C123", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
	assert.Equal(t, 2, calls)
}
