package catalog

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexYaroshenko/pricewatch/internal/metrics"
	"github.com/AlexYaroshenko/pricewatch/internal/session"
	"github.com/AlexYaroshenko/pricewatch/internal/store"
)

type staticHeader string

func (s staticHeader) AuthHeader() http.Header {
	h := http.Header{}
	if s != "" {
		h.Set("Authorization", "Bearer "+string(s))
	}
	return h
}

// fakeService records every request and answers with handler.
func fakeService(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestListMapsProducts(t *testing.T) {
	srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "Bearer abc123", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"id":42,"name":"Widget","price":19.99,"image_url":"http://img/w.png"},
			{"id":"a-7","name":"Gadget","price":5}]`)
	})
	c := New(srv.URL, staticHeader("abc123"))

	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Product{
		{ID: "42", Name: "Widget", Price: 19.99, ImageURL: "http://img/w.png"},
		{ID: "a-7", Name: "Gadget", Price: 5},
	}, got)
}

func TestListFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, "token expired", ErrUnauthorized},
		{"server error", http.StatusInternalServerError, "Erro ao buscar produtos", ErrUnavailable},
		{"object instead of array", http.StatusOK, `{"id":1}`, ErrUnavailable},
		{"empty body", http.StatusOK, ``, ErrUnavailable},
		{"item without id", http.StatusOK, `[{"name":"x","price":1}]`, ErrUnavailable},
		{"proxy error page", http.StatusOK, `<html><head><title>Maintenance</title></head></html>`, ErrUnavailable},
		{"sign-in page", http.StatusOK, `<html><body><form action="/auth/login"><input type="password"></form></body></html>`, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := New(srv.URL, staticHeader("t")).List(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestListEmpty(t *testing.T) {
	for _, body := range []string{`[]`, `null`} {
		srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		got, err := New(srv.URL, staticHeader("t")).List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestNetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := New(srv.URL, staticHeader("t")).List(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAdd(t *testing.T) {
	srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "http://store/x", req["url"])
		_, _ = io.WriteString(w, `{"id":42,"name":"Widget","price":19.99,"url":"http://store/x"}`)
	})
	p, err := New(srv.URL, staticHeader("t")).Add(context.Background(), " http://store/x ")
	require.NoError(t, err)
	assert.Equal(t, Product{ID: "42", Name: "Widget", Price: 19.99}, p)
}

func TestAddRejectsBadURLWithoutRequest(t *testing.T) {
	srv, calls := fakeService(t, func(w http.ResponseWriter, r *http.Request) {})
	c := New(srv.URL, staticHeader("t"))

	for _, u := range []string{"", "   ", "not a url", "ftp://store/x", "/relative/path", "http://"} {
		_, err := c.Add(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalid, "url %q", u)
	}
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestAddServerRejection(t *testing.T) {
	srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unreachable url", http.StatusUnprocessableEntity)
	})
	_, err := New(srv.URL, staticHeader("t")).Add(context.Background(), "http://store/x")
	assert.ErrorIs(t, err, ErrInvalid)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, http.StatusUnprocessableEntity, cerr.Status)
	assert.Equal(t, "unreachable url", cerr.Detail)
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"no content", http.StatusNoContent, nil},
		{"ok", http.StatusOK, nil},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/product/delete", r.URL.Path)
				assert.Equal(t, "42", r.URL.Query().Get("id"))
				w.WriteHeader(tt.status)
			})
			err := New(srv.URL, staticHeader("t")).Remove(context.Background(), "42")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDetail(t *testing.T) {
	srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product/info", r.URL.Path)
		switch r.URL.Query().Get("id") {
		case "42":
			_, _ = io.WriteString(w, `{"id":42,"name":"Widget","price":17.5,"image_url":"i"}`)
		case "7":
			http.Error(w, "Acesso negado.", http.StatusForbidden)
		default:
			http.Error(w, "Produto não encontrado", http.StatusNotFound)
		}
	})
	c := New(srv.URL, staticHeader("t"))

	p, err := c.Detail(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, Product{ID: "42", Name: "Widget", Price: 17.5, ImageURL: "i"}, p)

	_, err = c.Detail(context.Background(), "99")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Detail(context.Background(), "7")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   error
		checkFunc func(t *testing.T, pts []PricePoint)
	}{
		{
			name: "timestamps and plain dates",
			body: `[{"price":399.99,"date":"2024-01-01T10:00:00Z"},{"price":379.99,"date":"2024-01-15"}]`,
			checkFunc: func(t *testing.T, pts []PricePoint) {
				require.Len(t, pts, 2)
				assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), pts[0].Date)
				assert.Equal(t, 399.99, pts[0].Price)
				assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), pts[1].Date)
			},
		},
		{
			name: "null means nothing recorded",
			body: `null`,
			checkFunc: func(t *testing.T, pts []PricePoint) {
				assert.NotNil(t, pts)
				assert.Empty(t, pts)
			},
		},
		{
			name: "empty body means nothing recorded",
			body: ``,
			checkFunc: func(t *testing.T, pts []PricePoint) {
				assert.Empty(t, pts)
			},
		},
		{
			name:    "garbage",
			body:    `[{"price":"cheap","date":"yesterday"}]`,
			wantErr: ErrUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/product", r.URL.Path)
				_, _ = io.WriteString(w, tt.body)
			})
			pts, err := New(srv.URL, staticHeader("")).History(context.Background(), "42")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.checkFunc(t, pts)
		})
	}
}

func TestCreateAlert(t *testing.T) {
	var got map[string]any
	srv, calls := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product/alert", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"status":"updated"}`)
	})
	c := New(srv.URL, staticHeader("t"))

	for _, price := range []float64{-5, 0, -1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, c.CreateAlert(context.Background(), "42", price), ErrInvalid)
	}
	assert.ErrorIs(t, c.CreateAlert(context.Background(), "", 10), ErrInvalid)
	assert.Zero(t, atomic.LoadInt32(calls))

	require.NoError(t, c.CreateAlert(context.Background(), "42", 19.99))
	assert.Equal(t, float64(42), got["id"], "numeric ids travel as numbers")
	assert.Equal(t, 19.99, got["target_price"])

	require.NoError(t, c.CreateAlert(context.Background(), "sku-9", 5))
	assert.Equal(t, "sku-9", got["id"])
}

func TestProfile(t *testing.T) {
	srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			http.Error(w, "Não autorizado", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":7,"google_id":"g","email":"ana@example.com","name":"Ana","avatar_url":"http://a/p.png","telegram_chat_id":"123"}`)
	})

	p, err := New(srv.URL, staticHeader("good")).Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.UserProfile{ID: "7", Name: "Ana", Email: "ana@example.com",
		AvatarURL: "http://a/p.png", TelegramChatID: "123"}, p)

	_, err = New(srv.URL, staticHeader("bad")).Profile(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHeaderIsReadPerRequest(t *testing.T) {
	var seen []string
	srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	})
	sess := session.New(store.NewMemory())
	c := New(srv.URL, sess)

	_, _ = c.List(context.Background())
	require.NoError(t, sess.Login(context.Background(), "abc123"))
	_, _ = c.List(context.Background())
	sess.Logout(context.Background())
	_, _ = c.List(context.Background())

	assert.Equal(t, []string{"", "Bearer abc123", ""}, seen)
}

func TestUpdateSettings(t *testing.T) {
	srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/settings", r.URL.Path)
		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "555", req["telegram_chat_id"])
	})
	assert.NoError(t, New(srv.URL, staticHeader("t")).UpdateSettings(context.Background(), " 555 "))
}

func TestLoginURL(t *testing.T) {
	c := New("http://api.local:8080/", nil)
	assert.Equal(t, "http://api.local:8080/auth/google/login", c.LoginURL(""))
	assert.Equal(t, "http://api.local:8080/auth/github/login", c.LoginURL("github"))
}

func TestMetricsRecordOutcomes(t *testing.T) {
	srv, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(srv.URL, staticHeader("t"), WithMetrics(m))

	_, _ = c.List(context.Background())
	_, _ = c.List(context.Background())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("list", "unauthorized")))
}
