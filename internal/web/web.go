package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AlexYaroshenko/pricewatch/internal/authredirect"
	"github.com/AlexYaroshenko/pricewatch/internal/i18n"
	"github.com/AlexYaroshenko/pricewatch/internal/productsync"
	"github.com/AlexYaroshenko/pricewatch/internal/session"
)

// Server is the loopback server the identity provider redirects back to.
type Server struct {
	addr   string
	sess   *session.Store
	syncer *productsync.Syncer
	log    *zap.Logger
	auth   *authredirect.Handler
	mux    *http.ServeMux

	mu       sync.Mutex
	listener net.Listener
}

// NewServer wires the routes. syncer and gatherer may be nil.
func NewServer(addr string, sess *session.Store, syncer *productsync.Syncer, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{addr: addr, sess: sess, syncer: syncer, log: log, mux: http.NewServeMux()}
	s.auth = authredirect.NewHandler(sess, http.HandlerFunc(s.handleHome), log)

	s.mux.Handle("/", s.auth)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Done is closed after a sign-in redirect has been absorbed.
func (s *Server) Done() <-chan struct{} { return s.auth.Done() }

// Addr is the bound address once Run is listening, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Listen binds the address without serving yet, so callers can print
// the final address before Run.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		ln = s.listener
	}

	server := &http.Server{
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("callback server listening", zap.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("callback server forced to shut down", zap.Error(err))
		return err
	}
	return <-errc
}

var homeTmpl = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>{{call .T "title"}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; margin: 0; background: #f7f8fb; color: #111; }
        .card { max-width: 520px; margin: 80px auto; background: #fff; border-radius: 12px; padding: 24px; box-shadow: 0 2px 8px rgba(0,0,0,.06); }
        .muted { color: #666; }
    </style>
</head>
<body>
    <div class="card">
    {{if .Authenticated}}
        <h1>{{call .T "signed_in_title"}}</h1>
        {{if .Name}}<p>{{.Name}}</p>{{end}}
        <p class="muted">{{call .T "signed_in_body"}}</p>
    {{else}}
        <h1>{{call .T "signed_out_title"}}</h1>
        <p class="muted">{{call .T "signed_out_body"}}</p>
    {{end}}
    </div>
</body>
</html>`))

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	lang := i18n.DetectLang(r)
	snap := s.sess.Get()
	view := struct {
		Authenticated bool
		Name          string
		T             func(string) string
	}{
		Authenticated: snap.IsAuthenticated(),
		T:             func(key string) string { return i18n.T(lang, key) },
	}
	if snap.User != nil {
		view.Name = snap.User.Name
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := homeTmpl.Execute(w, view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type status struct {
	Authenticated bool `json:"authenticated"`
	Products      int  `json:"products"`
	Persistent    bool `json:"persistent"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := status{
		Authenticated: s.sess.Get().IsAuthenticated(),
		Persistent:    s.sess.Persistent(),
	}
	if s.syncer != nil {
		st.Products = len(s.syncer.Products())
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.log.Warn("status encode failed", zap.Error(err))
	}
}
