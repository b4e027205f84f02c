package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AlexYaroshenko/pricewatch/internal/session"
)

// Product is the summary the service returns for list, add and detail.
type Product struct {
	ID       string
	Name     string
	Price    float64
	ImageURL string
}

type PricePoint struct {
	Date  time.Time
	Price float64
}

type wireProduct struct {
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	Price    float64    `json:"price"`
	ImageURL string     `json:"image_url"`
}

func (w wireProduct) toProduct() Product {
	return Product{ID: string(w.ID), Name: w.Name, Price: w.Price, ImageURL: w.ImageURL}
}

type wirePoint struct {
	Date  flexTime `json:"date"`
	Price float64  `json:"price"`
}

type wireUser struct {
	ID             flexString `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	AvatarURL      string     `json:"avatar_url"`
	TelegramChatID flexString `json:"telegram_chat_id"`
}

func (w wireUser) toProfile() session.UserProfile {
	return session.UserProfile{
		ID:             string(w.ID),
		Name:           w.Name,
		Email:          w.Email,
		AvatarURL:      w.AvatarURL,
		TelegramChatID: string(w.TelegramChatID),
	}
}

// flexString accepts ids the service encodes either as numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*f = flexString(n.String())
	}
	return nil
}

// flexTime accepts RFC 3339 timestamps and plain dates.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", s)
}
