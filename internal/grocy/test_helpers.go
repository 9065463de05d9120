package grocy

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mockResponse represents a mocked HTTP response
type mockResponse struct {
	status int
	body   string
}

// setupTestClient creates a test client pointed at the given server
func setupTestClient(tb testing.TB, server *httptest.Server) *Client {
	tb.Helper()

	config := Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}

	client, err := NewClient(config)
	require.NoError(tb, err)

	return client
}

// setupMockServer creates a mock server with predefined responses keyed
// by "METHOD /api/path"
func setupMockServer(tb testing.TB, responses map[string]mockResponse) *httptest.Server {
	tb.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check API key
		if apiKey := r.Header.Get("GROCY-API-KEY"); apiKey == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error_message": "No valid api key provided"}`))
			return
		}

		key := r.Method + " " + r.URL.Path
		if response, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(response.status)
			_, _ = w.Write([]byte(response.body))
			return
		}

		// Default 404
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_message": "Not found"}`))
	}))

	if tt, ok := tb.(*testing.T); ok {
		tt.Cleanup(server.Close)
	}

	return server
}
