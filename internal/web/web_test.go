package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexYaroshenko/pricewatch/internal/metrics"
	"github.com/AlexYaroshenko/pricewatch/internal/session"
	"github.com/AlexYaroshenko/pricewatch/internal/store"
)

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, vs := range header {
		req.Header[k] = vs
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestSignInRedirect(t *testing.T) {
	sess := session.New(store.NewMemory())
	s := NewServer("127.0.0.1:0", sess, nil, nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/?token=abc123", http.Header{"Accept-Language": {"pt-BR"}})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", resp.Request.URL.RequestURI())
	assert.Contains(t, body, "Você entrou")
	assert.Equal(t, "abc123", sess.Get().Token)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("server did not report completion")
	}
}

func TestHomeSignedOut(t *testing.T) {
	s := NewServer("127.0.0.1:0", session.New(nil), nil, nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/?lang=de", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Nicht angemeldet")

	resp, _ = get(t, srv.URL+"/favicon.ico", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndStatus(t *testing.T) {
	sess := session.New(store.NewMemory())
	require.NoError(t, sess.Login(context.Background(), "abc123"))
	s := NewServer("127.0.0.1:0", sess, nil, nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)

	resp, body = get(t, srv.URL+"/status", nil)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var st status
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, status{Authenticated: true, Products: 0, Persistent: true}, st)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ForcedLogout()
	s := NewServer("127.0.0.1:0", session.New(nil), nil, reg, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "pricewatch_forced_logouts_total 1")
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", session.New(nil), nil, nil, nil)
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	resp, body := get(t, "http://"+s.Addr()+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
