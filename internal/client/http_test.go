package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/client"
)

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"jdoe","count":3}`))
	}))
	defer srv.Close()

	c := client.New("test-agent/1.0", 2)
	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	outcome, err := c.GetJSON(context.Background(), srv.URL, &out, nil)
	require.NoError(t, err)
	assert.True(t, outcome.OK())
	assert.Equal(t, "jdoe", out.Name)
	assert.Equal(t, 3, out.Count)
}

func TestClient_GetJSON_NonOKSkipsDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	c := client.New("test-agent/1.0", 2)
	var out map[string]any
	outcome, err := c.GetJSON(context.Background(), srv.URL, &out, nil)
	require.NoError(t, err, "non-2xx statuses are outcomes, not errors")
	assert.Equal(t, http.StatusNotFound, outcome.StatusCode)
	assert.False(t, outcome.OK())
	assert.Nil(t, out)
}

func TestClient_BearerAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := client.New("test-agent/1.0", 2)
	_, err := c.GetJSON(context.Background(), srv.URL, nil, &client.Options{
		BearerToken: "tok123",
		Headers:     map[string]string{"X-Custom": "yes"},
	})
	require.NoError(t, err)
}

func TestClient_PostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "query terms", r.PostForm.Get("q"))
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := client.New("test-agent/1.0", 2)
	outcome, body, err := c.PostForm(context.Background(), srv.URL, url.Values{"q": {"query terms"}}, nil)
	require.NoError(t, err)
	assert.True(t, outcome.OK())
	assert.Contains(t, string(body), "ok")
}

func TestClient_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 600<<10)))
	}))
	defer srv.Close()

	c := client.New("test-agent/1.0", 2)
	_, body, err := c.GetBody(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, body, 512<<10, "body reads are capped")
}

func TestClient_ErrorsOmitQueryString(t *testing.T) {
	c := client.New("test-agent/1.0", 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetJSON(ctx, "https://api.example.invalid/lookup?email=secret@example.com", nil, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret@example.com")
}
