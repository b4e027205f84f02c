package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlexYaroshenko/pricewatch/internal/catalog"
	"github.com/AlexYaroshenko/pricewatch/internal/session"
)

// DefaultBot is the bot that delivers price alerts.
const DefaultBot = "price_analyzer_monitor_bot"

var ErrNoUser = errors.New("telegram: user id is required")

// ConnectLink builds the deep link that, opened in Telegram, starts the bot
// with a payload identifying the user. The bot then stores the chat id on
// the user's profile.
func ConnectLink(bot, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrNoUser
	}
	if bot == "" {
		bot = DefaultBot
	}
	bot = strings.TrimPrefix(bot, "@")
	q := url.Values{"start": {"connect_" + userID}}
	return "https://t.me/" + url.PathEscape(bot) + "?" + q.Encode(), nil
}

// ParseChatID validates a chat id typed by the user. Group chats have
// negative ids.
func ParseChatID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return "", fmt.Errorf("telegram: chat id must be an integer, got %q", s)
	}
	return s, nil
}

// FetchProfile returns the current user profile.
type FetchProfile func(ctx context.Context) (session.UserProfile, error)

// WaitForLink polls fetch until the profile carries a chat id. Transient
// service failures are retried; any other error ends the wait.
func WaitForLink(ctx context.Context, fetch FetchProfile, interval time.Duration, log *zap.Logger) (session.UserProfile, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := fetch(ctx)
		switch {
		case err == nil && p.TelegramChatID != "":
			log.Info("telegram linked", zap.String("chat_id", p.TelegramChatID))
			return p, nil
		case err == nil:
			log.Debug("telegram not linked yet")
		case errors.Is(err, catalog.ErrUnavailable):
			log.Warn("profile check failed, retrying", zap.Error(err))
		default:
			return session.UserProfile{}, err
		}

		select {
		case <-ctx.Done():
			return session.UserProfile{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
