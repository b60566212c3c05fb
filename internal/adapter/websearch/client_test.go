package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "n8n webhook 404", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		fmt.Fprint(w, `{"results":[
			{"title":"Webhook 404","url":"https://community.n8n.io/t/1","content":"activate the workflow"},
			{"title":"Other","url":"https://example.com","content":"..."}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 5)
	results, err := c.Search(context.Background(), "n8n webhook 404")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Webhook 404", results[0].Title)
	assert.Equal(t, "https://community.n8n.io/t/1", results[0].URL)
}

func TestSearchCapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"title":"1"},{"title":"2"},{"title":"3"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 2)
	results, err := c.Search(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchUnconfigured(t *testing.T) {
	c := NewClient("", 5*time.Second, 5)
	_, err := c.Search(context.Background(), "query")
	require.Error(t, err)

	var toolErr *domain.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, domain.ToolErrorTransient, toolErr.Kind)
	assert.Contains(t, toolErr.Message, "not configured")
}

func TestSearchBackendFailures(t *testing.T) {
	tests := []struct {
		status   int
		wantKind domain.ToolErrorKind
	}{
		{http.StatusTooManyRequests, domain.ToolErrorRateLimited},
		{http.StatusInternalServerError, domain.ToolErrorTransient},
		{http.StatusBadRequest, domain.ToolErrorInvalidArgs},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := NewClient(srv.URL, 5*time.Second, 5)
		_, err := c.Search(context.Background(), "query")
		srv.Close()
		require.Error(t, err)

		var toolErr *domain.ToolError
		require.True(t, errors.As(err, &toolErr))
		assert.Equal(t, tt.wantKind, toolErr.Kind, "status %d", tt.status)
	}
}
