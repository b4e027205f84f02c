package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/AlexYaroshenko/pricewatch/internal/catalog"
	"github.com/AlexYaroshenko/pricewatch/internal/config"
	"github.com/AlexYaroshenko/pricewatch/internal/i18n"
	"github.com/AlexYaroshenko/pricewatch/internal/logger"
	"github.com/AlexYaroshenko/pricewatch/internal/metrics"
	"github.com/AlexYaroshenko/pricewatch/internal/productsync"
	"github.com/AlexYaroshenko/pricewatch/internal/session"
	"github.com/AlexYaroshenko/pricewatch/internal/store"
)

// app is the composition root: every collaborator is built once here and
// handed to the commands.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	lang   string
	out    io.Writer
	errOut io.Writer

	backend  store.TokenStore
	sess     *session.Store
	client   *catalog.Client
	syncer   *productsync.Syncer
	registry *prometheus.Registry

	watching bool
	stopSync func()
}

func newApp(ctx context.Context, v *viper.Viper, out, errOut io.Writer, envFiles ...string) (*app, error) {
	cfg, err := config.Load(v, envFiles...)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		log:    logger.NewWithWriter(cfg.LogLevel, cfg.LogFormat, errOut),
		lang:   i18n.FromEnv(cfg.Lang),
		out:    out,
		errOut: errOut,
	}

	a.backend = openStore(ctx, cfg, a.log)
	a.sess = session.New(a.backend,
		session.WithLogger(a.log.Named("session")),
		session.WithSignInNavigator(func() { fmt.Fprintln(a.errOut, a.t("signed_out_body")) }),
	)
	a.sess.Hydrate(ctx)

	a.registry = prometheus.NewRegistry()
	m := metrics.New(a.registry)
	a.client = catalog.New(cfg.APIURL, a.sess,
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		catalog.WithLogger(a.log.Named("catalog")),
		catalog.WithMetrics(m),
	)
	a.syncer = productsync.New(a.sess, a.client,
		productsync.WithLogger(a.log.Named("sync")),
		productsync.WithMetrics(m),
		productsync.WithNotifier(a.notice),
		productsync.WithSerializedMutations(),
	)
	return a, nil
}

// openStore returns nil for the memory backend and when the configured
// backend cannot be opened; the session then lives in memory only and
// reports itself as not persistent.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) store.TokenStore {
	var (
		s   store.TokenStore
		err error
	)
	switch cfg.Store {
	case config.StoreBolt:
		s, err = store.OpenBolt(cfg.BoltPath, cfg.TablePrefix, store.DefaultKey)
	case config.StorePostgres:
		s, err = store.OpenPostgres(ctx, cfg.DatabaseURL, cfg.TablePrefix, store.DefaultKey)
	case config.StoreRedis:
		s, err = store.OpenRedis(ctx, cfg.RedisAddr, cfg.TablePrefix, store.DefaultKey)
	default:
		return nil
	}
	if err != nil {
		log.Warn("token store unavailable, session will not persist",
			zap.String("store", cfg.Store), zap.Error(err))
		return nil
	}
	return s
}

// start begins session observation; it is only needed by long-running
// commands.
func (a *app) start(ctx context.Context) {
	if a.stopSync == nil {
		a.stopSync = a.syncer.Start(ctx)
	}
}

func (a *app) close() {
	if a.stopSync != nil {
		a.stopSync()
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.log.Debug("token store close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func (a *app) t(key string) string { return i18n.T(a.lang, key) }

func (a *app) notice(n productsync.Notice) {
	if !a.watching {
		a.log.Debug("notice", zap.String("notice", n.String()))
		return
	}
	switch n.Kind {
	case productsync.NoticeSessionExpired:
		fmt.Fprintln(a.errOut, a.t("session_expired"))
	default:
		fmt.Fprintln(a.errOut, a.t("service_unavailable"))
	}
}
