package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSONRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "a", payload["u"])

		w.Header().Set("X-Request-Id", "r-1")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"token":"T"}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    server.URL + "/login",
		Body:   map[string]interface{}{"u": "a"},
	})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "r-1", resp.Headers["X-Request-Id"])
	assert.Equal(t, map[string]interface{}{"token": "T"}, resp.Body)
	assert.GreaterOrEqual(t, resp.DurationMs, int64(0))
}

func TestDoNonJSONBodyFallsBackToString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "plain text", resp.Body)
}

func TestDoUnsupportedMethod(t *testing.T) {
	client := NewClient()
	_, err := client.Do(context.Background(), Request{Method: "TRACE", URL: "http://localhost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported method")
}

func TestDoConnectionRefused(t *testing.T) {
	client := NewClient(WithTimeout(2 * time.Second))
	_, err := client.Do(context.Background(), Request{
		Method: http.MethodGet,
		URL:    "http://127.0.0.1:1/unreachable",
	})
	require.Error(t, err)
}

func TestExecuteResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	result, err := Execute(context.Background(), NewClient(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 201, result.Status)
	assert.Equal(t, map[string]interface{}{"ok": true}, result.Data)
	assert.NotEmpty(t, result.Timestamp)
}

func TestGenerateCurl(t *testing.T) {
	assert.Equal(t, "curl -X GET 'http://h/x'", GenerateCurl("http://h/x", "GET", nil))

	withBody := GenerateCurl("http://h/x", "POST", map[string]interface{}{"a": 1})
	assert.Contains(t, withBody, "curl -X POST 'http://h/x'")
	assert.Contains(t, withBody, `-d '{"a":1}'`)
}
