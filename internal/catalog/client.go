package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlexYaroshenko/pricewatch/internal/metrics"
	"github.com/AlexYaroshenko/pricewatch/internal/parser"
	"github.com/AlexYaroshenko/pricewatch/internal/session"
)

const maxBody = 4 << 20

// HeaderSource supplies credential headers for each outbound request.
type HeaderSource interface {
	AuthHeader() http.Header
}

// Client maps catalog operations onto single HTTP request/response pairs.
// It holds no session state of its own.
type Client struct {
	baseURL string
	client  *http.Client
	auth    HeaderSource
	log     *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.client = hc } }
func WithLogger(l *zap.Logger) Option        { return func(c *Client) { c.log = l } }
func WithMetrics(m *metrics.Metrics) Option  { return func(c *Client) { c.metrics = m } }

func New(baseURL string, auth HeaderSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		auth:    auth,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) List(ctx context.Context) ([]Product, error) {
	body, err := c.do(ctx, "list", http.MethodGet, "/products", nil, nil)
	if err != nil {
		return nil, err
	}
	var wire []wireProduct
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &Error{Op: "list", Err: ErrUnavailable, Detail: "malformed response: " + err.Error()}
	}
	out := make([]Product, 0, len(wire))
	for i, w := range wire {
		if w.ID == "" {
			return nil, &Error{Op: "list", Err: ErrUnavailable, Detail: fmt.Sprintf("malformed response: item %d has no id", i)}
		}
		out = append(out, w.toProduct())
	}
	return out, nil
}

func (c *Client) Add(ctx context.Context, rawURL string) (Product, error) {
	if err := ValidateURL(rawURL); err != nil {
		return Product{}, invalid("add", err.Error())
	}
	body, err := c.do(ctx, "add", http.MethodPost, "/products", nil, map[string]string{"url": strings.TrimSpace(rawURL)})
	if err != nil {
		return Product{}, err
	}
	return decodeProduct("add", body)
}

func (c *Client) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("remove", "product id is required")
	}
	_, err := c.do(ctx, "remove", http.MethodDelete, "/product/delete", url.Values{"id": {id}}, nil)
	return err
}

func (c *Client) Detail(ctx context.Context, id string) (Product, error) {
	if strings.TrimSpace(id) == "" {
		return Product{}, invalid("detail", "product id is required")
	}
	body, err := c.do(ctx, "detail", http.MethodGet, "/product/info", url.Values{"id": {id}}, nil)
	if err != nil {
		return Product{}, err
	}
	return decodeProduct("detail", body)
}

// History returns the recorded price points in service order. No recorded
// points is an empty slice, not an error.
func (c *Client) History(ctx context.Context, id string) ([]PricePoint, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("history", "product id is required")
	}
	body, err := c.do(ctx, "history", http.MethodGet, "/product", url.Values{"id": {id}}, nil)
	if err != nil {
		return nil, err
	}
	out := []PricePoint{}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	var wire []wirePoint
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &Error{Op: "history", Err: ErrUnavailable, Detail: "malformed response: " + err.Error()}
	}
	for _, w := range wire {
		out = append(out, PricePoint{Date: time.Time(w.Date), Price: w.Price})
	}
	return out, nil
}

func (c *Client) CreateAlert(ctx context.Context, productID string, targetPrice float64) error {
	if err := ValidateAlert(productID, targetPrice); err != nil {
		return invalid("alert", err.Error())
	}
	req := map[string]any{"id": wireID(productID), "target_price": targetPrice}
	_, err := c.do(ctx, "alert", http.MethodPost, "/product/alert", nil, req)
	return err
}

func (c *Client) Profile(ctx context.Context) (session.UserProfile, error) {
	body, err := c.do(ctx, "profile", http.MethodGet, "/auth/me", nil, nil)
	if err != nil {
		return session.UserProfile{}, err
	}
	var w wireUser
	if err := json.Unmarshal(body, &w); err != nil {
		return session.UserProfile{}, &Error{Op: "profile", Err: ErrUnavailable, Detail: "malformed response: " + err.Error()}
	}
	return w.toProfile(), nil
}

// UpdateSettings links a Telegram chat for alert delivery.
func (c *Client) UpdateSettings(ctx context.Context, telegramChatID string) error {
	_, err := c.do(ctx, "settings", http.MethodPost, "/user/settings", nil,
		map[string]string{"telegram_chat_id": strings.TrimSpace(telegramChatID)})
	return err
}

// LoginURL is where the browser goes to start the external sign-in.
func (c *Client) LoginURL(provider string) string {
	if provider == "" {
		provider = "google"
	}
	return c.baseURL + "/auth/" + url.PathEscape(provider) + "/login"
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %v", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) address")
	}
	return nil
}

func ValidateAlert(productID string, targetPrice float64) error {
	if strings.TrimSpace(productID) == "" {
		return fmt.Errorf("product id is required")
	}
	if math.IsNaN(targetPrice) || math.IsInf(targetPrice, 0) || targetPrice <= 0 {
		return fmt.Errorf("target price must be a positive number")
	}
	return nil
}

// wireID sends integer-looking ids as JSON numbers, which is what the
// service stores.
func wireID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func decodeProduct(op string, body []byte) (Product, error) {
	var w wireProduct
	if err := json.Unmarshal(body, &w); err != nil {
		return Product{}, &Error{Op: op, Err: ErrUnavailable, Detail: "malformed response: " + err.Error()}
	}
	if w.ID == "" {
		return Product{}, &Error{Op: op, Err: ErrUnavailable, Detail: "malformed response: missing id"}
	}
	return w.toProduct(), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	start := time.Now()
	body, status, err := c.roundTrip(ctx, op, method, path, query, payload)
	c.metrics.Observe(op, Outcome(err), time.Since(start))
	if err != nil {
		c.log.Debug("catalog request failed",
			zap.String("op", op), zap.Int("status", status), zap.Error(err))
		return nil, err
	}
	c.log.Debug("catalog request", zap.String("op", op), zap.Int("status", status),
		zap.Duration("took", time.Since(start)))
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, &Error{Op: op, Err: ErrInvalid, Detail: err.Error()}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, 0, &Error{Op: op, Err: ErrUnavailable, Detail: err.Error()}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pricewatch/1.0")
	if c.auth != nil {
		for k, vs := range c.auth.AuthHeader() {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, &Error{Op: op, Err: ErrUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, &Error{Op: op, Status: resp.StatusCode, Err: ErrUnavailable, Detail: err.Error()}
	}

	if kind := classify(resp.StatusCode); kind != nil {
		return nil, resp.StatusCode, &Error{Op: op, Status: resp.StatusCode, Err: kind, Detail: describe(body)}
	}

	if parser.LooksLikeHTML(body) {
		summary, perr := parser.InspectHTML(body)
		if errors.Is(perr, parser.ErrReauthNeeded) {
			return nil, resp.StatusCode, &Error{Op: op, Status: resp.StatusCode, Err: ErrUnauthorized, Detail: "sign-in page returned"}
		}
		return nil, resp.StatusCode, &Error{Op: op, Status: resp.StatusCode, Err: ErrUnavailable, Detail: "unexpected html: " + summary}
	}
	return body, resp.StatusCode, nil
}

func classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	// the service answers 403 for products owned by someone else
	case status == http.StatusNotFound, status == http.StatusForbidden:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrInvalid
	default:
		return ErrUnavailable
	}
}

func describe(body []byte) string {
	if parser.LooksLikeHTML(body) {
		if s, err := parser.InspectHTML(body); err == nil {
			return s
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}
