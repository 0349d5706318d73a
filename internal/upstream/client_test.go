package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithRetryInterval(time.Millisecond)}, opts...)
	c, err := New("test", srv.URL, 5*time.Second, retries, opts...)
	require.NoError(t, err)
	return c
}

func TestGetJSONDecodesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/things", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("p"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"name":"x"}`))
	}, 0)

	var out struct{ Name string }
	require.NoError(t, c.GetJSON(context.Background(), "api/things", url.Values{"p": {"2"}}, &out))
	assert.Equal(t, "x", out.Name)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	rec := metrics.New()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}, 3, WithRecorder(rec))

	var out map[string]any
	require.NoError(t, c.GetJSON(context.Background(), "api/json", nil, &out))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, 3)

	var out map[string]any
	err := c.GetJSON(context.Background(), "missing", url.Values{"x": {"1"}}, &out)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, errors.Is(err, contract.ErrSourceUnavailable))
	assert.True(t, IsNotFound(err))

	var serr *contract.SourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "/missing?x=1", serr.Path)
	assert.Equal(t, "test", serr.Source)
}

func TestGetJSONGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, 2)

	var out map[string]any
	err := c.GetJSON(context.Background(), "api/json", nil, &out)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var serr *contract.SourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadGateway, serr.Status)
}

func TestGetJSONOptional(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, 0)

	var out map[string]any
	found, err := c.GetJSONOptional(context.Background(), "gone", nil, &out)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.GetJSONOptional(context.Background(), "here", nil, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, true, out["ok"])
}

func TestGetJSONMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}, 3)

	var out map[string]any
	err := c.GetJSON(context.Background(), "api/json", nil, &out)
	assert.ErrorIs(t, err, contract.ErrSourceUnavailable)
}

func TestBasicAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, token, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot", user)
		assert.Equal(t, "secret", token)
		_, _ = w.Write([]byte(`{}`))
	}, 0, WithBasicAuth("bot", "secret"))

	var out map[string]any
	require.NoError(t, c.GetJSON(context.Background(), "api/json", nil, &out))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("test", "not a url", time.Second, 0)
	assert.Error(t, err)
}
