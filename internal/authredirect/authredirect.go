// Package authredirect absorbs the bearer token the identity provider
// appends to the landing address after an external sign-in.
package authredirect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// TokenParam is the query parameter carrying the token on the landing route.
const TokenParam = "token"

// Session is the part of session.Store sign-in completion needs.
type Session interface {
	Login(ctx context.Context, token string) error
}

type Result struct {
	// URL is the landing address with the token parameter removed.
	URL      *url.URL
	Absorbed bool
}

// Complete logs in with the token found on landing, if any. The token is
// not verified here; the provider that minted it already did that.
func Complete(ctx context.Context, sess Session, landing *url.URL) (Result, error) {
	cleaned := *landing
	q := landing.Query()
	if !q.Has(TokenParam) {
		return Result{URL: &cleaned}, nil
	}
	token := strings.TrimSpace(q.Get(TokenParam))
	q.Del(TokenParam)
	cleaned.RawQuery = q.Encode()
	if token == "" {
		return Result{URL: &cleaned}, nil
	}
	if err := sess.Login(ctx, token); err != nil {
		return Result{URL: &cleaned}, fmt.Errorf("complete sign-in: %w", err)
	}
	return Result{URL: &cleaned, Absorbed: true}, nil
}

// Handler serves the landing route. A request carrying a token is
// answered with 303 See Other to the cleaned address; everything else is
// passed to next.
type Handler struct {
	sess     Session
	next     http.Handler
	log      *zap.Logger
	absorbed atomic.Bool
	once     sync.Once
	done     chan struct{}
}

func NewHandler(sess Session, next http.Handler, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sess: sess, next: next, log: log, done: make(chan struct{})}
}

// Done is closed once a token has been absorbed and the page the browser
// was redirected to has been served.
func (h *Handler) Done() <-chan struct{} { return h.done }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := Complete(r.Context(), h.sess, r.URL)
	if err != nil {
		h.log.Warn("sign-in completion failed", zap.Error(err))
		http.Error(w, "sign-in failed", http.StatusBadRequest)
		return
	}
	if res.URL.RawQuery != r.URL.RawQuery {
		if res.Absorbed {
			h.log.Info("token received from sign-in redirect")
			h.absorbed.Store(true)
			if h.next == nil {
				h.finish()
			}
		}
		http.Redirect(w, r, res.URL.RequestURI(), http.StatusSeeOther)
		return
	}
	if h.next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.next.ServeHTTP(w, r)
	if h.absorbed.Load() {
		h.finish()
	}
}

func (h *Handler) finish() {
	h.once.Do(func() { close(h.done) })
}
