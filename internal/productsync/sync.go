package productsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/AlexYaroshenko/pricewatch/internal/catalog"
	"github.com/AlexYaroshenko/pricewatch/internal/metrics"
	"github.com/AlexYaroshenko/pricewatch/internal/session"
)

// ErrStale is returned when a call completed after the session it was
// issued for had ended or been superseded; its result was discarded.
var ErrStale = errors.New("result discarded: session changed while the request was in flight")

// Syncer owns the product collection and keeps it consistent with the
// catalog service across session changes.
type Syncer struct {
	sess    *session.Store
	catalog Catalog
	log     *zap.Logger
	metrics *metrics.Metrics
	notice  func(Notice)

	mu         sync.Mutex
	products   []MonitoredProduct
	owner      uint64 // session epoch the collection belongs to
	refreshGen uint64
	triggered  uint64 // last epoch that received its automatic refresh

	logoutMu  sync.Mutex
	mutMu     sync.Mutex
	serialize bool

	lmu       sync.Mutex
	listeners map[int]func([]MonitoredProduct)
	nextID    int

	bg      context.Context
	bgMu    sync.Mutex // orders wg.Add against Wait and stop
	stopped bool
	wg      sync.WaitGroup
	unsub   func()
}

type Option func(*Syncer)

func WithLogger(l *zap.Logger) Option       { return func(s *Syncer) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Syncer) { s.metrics = m } }

// WithNotifier receives transient notices meant for the user.
func WithNotifier(fn func(Notice)) Option { return func(s *Syncer) { s.notice = fn } }

// WithSerializedMutations makes add and remove calls run one at a time, so
// the collection reflects them in call order rather than completion order.
func WithSerializedMutations() Option { return func(s *Syncer) { s.serialize = true } }

func New(sess *session.Store, cat Catalog, opts ...Option) *Syncer {
	s := &Syncer{
		sess:      sess,
		catalog:   cat,
		log:       zap.NewNop(),
		listeners: make(map[int]func([]MonitoredProduct)),
		bg:        context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start begins observing the session. Every transition into a new
// authenticated session schedules exactly one refresh and one profile load;
// a session that is already authenticated counts as such a transition.
// The returned stop function unsubscribes and waits for scheduled work.
func (s *Syncer) Start(ctx context.Context) (stop func()) {
	s.bgMu.Lock()
	s.bg = ctx
	s.stopped = false
	s.bgMu.Unlock()
	s.unsub = s.sess.Subscribe(s.onSession)
	s.observe(s.sess.Get())
	return func() {
		s.unsub()
		s.bgMu.Lock()
		s.stopped = true
		s.bgMu.Unlock()
		s.wg.Wait()
	}
}

// Wait blocks until scheduled background work has finished. Sessions
// established while it waits are scheduled once it returns.
func (s *Syncer) Wait() {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	s.wg.Wait()
}

func (s *Syncer) onSession(prev, next session.Snapshot) {
	if !next.IsAuthenticated() {
		s.reset(next.Epoch)
		return
	}
	if prev.Epoch != next.Epoch {
		s.observe(next)
	}
}

func (s *Syncer) observe(snap session.Snapshot) {
	if !snap.IsAuthenticated() {
		return
	}
	s.mu.Lock()
	if s.triggered == snap.Epoch {
		s.mu.Unlock()
		return
	}
	s.triggered = snap.Epoch
	cleared := false
	if s.owner != snap.Epoch {
		cleared = len(s.products) > 0
		s.products = nil
		s.owner = snap.Epoch
	}
	s.mu.Unlock()
	if cleared {
		s.publish()
	}

	s.bgMu.Lock()
	if s.stopped {
		s.bgMu.Unlock()
		return
	}
	bg := s.bg
	s.wg.Add(2)
	s.bgMu.Unlock()

	s.log.Debug("session established, scheduling refresh", zap.Uint64("epoch", snap.Epoch))
	go func() {
		defer s.wg.Done()
		if _, err := s.Refresh(bg); err != nil {
			s.log.Debug("background refresh finished with error", zap.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		if _, err := s.LoadProfile(bg); err != nil {
			s.log.Debug("background profile load finished with error", zap.Error(err))
		}
	}()
}

func (s *Syncer) reset(epoch uint64) {
	s.mu.Lock()
	cleared := len(s.products) > 0
	s.products = nil
	s.owner = epoch
	s.mu.Unlock()
	if cleared {
		s.publish()
	}
}

// Refresh replaces the collection with the service's list. While anonymous
// it returns an empty collection without touching the network.
func (s *Syncer) Refresh(ctx context.Context) ([]MonitoredProduct, error) {
	snap := s.sess.Get()
	if !snap.IsAuthenticated() {
		s.reset(snap.Epoch)
		return []MonitoredProduct{}, nil
	}

	s.mu.Lock()
	s.refreshGen++
	gen := s.refreshGen
	s.mu.Unlock()

	items, err := s.catalog.List(ctx)
	if err != nil {
		err = s.fail("refresh", snap.Epoch, err)
		if errors.Is(err, catalog.ErrUnauthorized) {
			return []MonitoredProduct{}, err
		}
		return s.Products(), err
	}

	next := make([]MonitoredProduct, 0, len(items))
	for _, it := range items {
		next = append(next, fromSummary(it))
	}

	s.mu.Lock()
	if s.sess.Get().Epoch != snap.Epoch {
		s.mu.Unlock()
		return []MonitoredProduct{}, ErrStale
	}
	if gen != s.refreshGen {
		// a later refresh was dispatched; it owns the result
		s.mu.Unlock()
		return s.Products(), nil
	}
	s.products = next
	s.owner = snap.Epoch
	s.mu.Unlock()

	s.log.Info("products refreshed", zap.Int("count", len(next)))
	s.publish()
	return s.Products(), nil
}

// AddProduct submits url and appends the resolved product. Duplicates by
// id are kept; the caller decides whether that matters.
func (s *Syncer) AddProduct(ctx context.Context, url string) (MonitoredProduct, error) {
	if err := catalog.ValidateURL(url); err != nil {
		return MonitoredProduct{}, &catalog.Error{Op: "add", Err: catalog.ErrInvalid, Detail: err.Error()}
	}
	snap, err := s.authenticated("add")
	if err != nil {
		return MonitoredProduct{}, err
	}
	s.lockMutation()
	defer s.unlockMutation()

	p, err := s.catalog.Add(ctx, url)
	if err != nil {
		return MonitoredProduct{}, s.fail("add", snap.Epoch, err)
	}
	mp := fromSummary(p)

	s.mu.Lock()
	if s.sess.Get().Epoch != snap.Epoch {
		s.mu.Unlock()
		return MonitoredProduct{}, ErrStale
	}
	if s.owner != snap.Epoch {
		s.products = nil
		s.owner = snap.Epoch
	}
	s.products = append(s.products, mp)
	s.mu.Unlock()

	s.log.Info("product added", zap.String("id", mp.ID), zap.String("name", mp.Name))
	s.publish()
	return mp.clone(), nil
}

// RemoveProduct drops id from the collection once the service confirms.
func (s *Syncer) RemoveProduct(ctx context.Context, id string) error {
	snap, err := s.authenticated("remove")
	if err != nil {
		return err
	}
	s.lockMutation()
	defer s.unlockMutation()

	if err := s.catalog.Remove(ctx, id); err != nil {
		return s.fail("remove", snap.Epoch, err)
	}

	s.mu.Lock()
	if s.sess.Get().Epoch != snap.Epoch {
		s.mu.Unlock()
		return ErrStale
	}
	kept := make([]MonitoredProduct, 0, len(s.products))
	for _, p := range s.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.products = kept
	s.mu.Unlock()

	s.log.Info("product removed", zap.String("id", id))
	s.publish()
	return nil
}

// CreateAlert validates locally before anything reaches the network.
func (s *Syncer) CreateAlert(ctx context.Context, productID string, targetPrice float64) error {
	if err := catalog.ValidateAlert(productID, targetPrice); err != nil {
		return &catalog.Error{Op: "alert", Err: catalog.ErrInvalid, Detail: err.Error()}
	}
	snap, err := s.authenticated("alert")
	if err != nil {
		return err
	}
	if err := s.catalog.CreateAlert(ctx, productID, targetPrice); err != nil {
		return s.fail("alert", snap.Epoch, err)
	}
	s.log.Info("alert created", zap.String("id", productID), zap.Float64("target_price", targetPrice))
	return nil
}

// LoadDetail fetches the product record and its price history and merges
// them into the matching collection entries.
func (s *Syncer) LoadDetail(ctx context.Context, id string) (MonitoredProduct, error) {
	snap, err := s.authenticated("detail")
	if err != nil {
		return MonitoredProduct{}, err
	}
	d, err := s.catalog.Detail(ctx, id)
	if err != nil {
		return MonitoredProduct{}, s.fail("detail", snap.Epoch, err)
	}
	h, err := s.catalog.History(ctx, id)
	if err != nil {
		return MonitoredProduct{}, s.fail("history", snap.Epoch, err)
	}

	merged := fromSummary(d).withHistory(h)

	s.mu.Lock()
	if s.sess.Get().Epoch != snap.Epoch {
		s.mu.Unlock()
		return MonitoredProduct{}, ErrStale
	}
	changed := false
	for i, p := range s.products {
		if p.ID != id {
			continue
		}
		p.Name = d.Name
		p.ImageURL = d.ImageURL
		p.CurrentPrice = d.Price
		s.products[i] = p.withHistory(h)
		merged = s.products[i].clone()
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.publish()
	}
	return merged, nil
}

// LoadProfile fetches the signed-in user and attaches it to the session.
func (s *Syncer) LoadProfile(ctx context.Context) (session.UserProfile, error) {
	snap, err := s.authenticated("profile")
	if err != nil {
		return session.UserProfile{}, err
	}
	p, err := s.catalog.Profile(ctx)
	if err != nil {
		return session.UserProfile{}, s.fail("profile", snap.Epoch, err)
	}
	if !s.sess.SetProfile(snap.Epoch, p) {
		return session.UserProfile{}, ErrStale
	}
	return p, nil
}

// LinkTelegram stores chatID for alert delivery and reloads the profile.
func (s *Syncer) LinkTelegram(ctx context.Context, chatID string) (session.UserProfile, error) {
	snap, err := s.authenticated("settings")
	if err != nil {
		return session.UserProfile{}, err
	}
	if err := s.catalog.UpdateSettings(ctx, chatID); err != nil {
		return session.UserProfile{}, s.fail("settings", snap.Epoch, err)
	}
	return s.LoadProfile(ctx)
}

// Products returns a copy of the collection.
func (s *Syncer) Products() []MonitoredProduct {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Syncer) copyLocked() []MonitoredProduct {
	out := make([]MonitoredProduct, len(s.products))
	for i, p := range s.products {
		out[i] = p.clone()
	}
	return out
}

// Subscribe registers fn for every collection change.
func (s *Syncer) Subscribe(fn func([]MonitoredProduct)) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Syncer) publish() {
	snapshot := s.Products()
	s.metrics.SetProducts(len(snapshot))

	s.lmu.Lock()
	ls := make([]func([]MonitoredProduct), 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.lmu.Unlock()
	for _, l := range ls {
		l(snapshot)
	}
}

func (s *Syncer) authenticated(op string) (session.Snapshot, error) {
	snap := s.sess.Get()
	if !snap.IsAuthenticated() {
		return snap, &catalog.Error{Op: op, Err: catalog.ErrUnauthorized, Detail: "not signed in"}
	}
	return snap, nil
}

// fail routes a catalog error: authorization failures end the session that
// issued the call, transient failures become a notice.
func (s *Syncer) fail(op string, epoch uint64, err error) error {
	switch {
	case errors.Is(err, catalog.ErrUnauthorized):
		s.forceLogout(op, epoch, err)
	case errors.Is(err, catalog.ErrInvalid), errors.Is(err, catalog.ErrNotFound):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		s.log.Warn("catalog unavailable", zap.String("op", op), zap.Error(err))
		s.emit(Notice{Kind: NoticeUnavailable, Op: op, Err: err})
	}
	return err
}

// forceLogout logs out at most once per session: a failure reported for
// an epoch that already ended is ignored.
func (s *Syncer) forceLogout(op string, epoch uint64, cause error) {
	s.logoutMu.Lock()
	defer s.logoutMu.Unlock()
	if cur := s.sess.Get(); cur.Epoch != epoch || !cur.IsAuthenticated() {
		return
	}
	s.log.Warn("token rejected, signing out", zap.String("op", op), zap.Error(cause))
	s.metrics.ForcedLogout()
	s.sess.Logout(context.Background())
	s.reset(s.sess.Get().Epoch)
	s.emit(Notice{Kind: NoticeSessionExpired, Op: op, Err: cause})
}

func (s *Syncer) emit(n Notice) {
	if s.notice != nil {
		s.notice(n)
	}
}

func (s *Syncer) lockMutation() {
	if s.serialize {
		s.mutMu.Lock()
	}
}

func (s *Syncer) unlockMutation() {
	if s.serialize {
		s.mutMu.Unlock()
	}
}

func (n Notice) String() string {
	switch n.Kind {
	case NoticeSessionExpired:
		return fmt.Sprintf("session expired during %s", n.Op)
	default:
		return fmt.Sprintf("%s failed: %v", n.Op, n.Err)
	}
}
