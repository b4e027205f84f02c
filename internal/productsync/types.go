package productsync

import (
	"context"

	"github.com/AlexYaroshenko/pricewatch/internal/catalog"
	"github.com/AlexYaroshenko/pricewatch/internal/session"
)

// Catalog is the part of catalog.Client the syncer depends on.
type Catalog interface {
	List(ctx context.Context) ([]catalog.Product, error)
	Add(ctx context.Context, url string) (catalog.Product, error)
	Remove(ctx context.Context, id string) error
	Detail(ctx context.Context, id string) (catalog.Product, error)
	History(ctx context.Context, id string) ([]catalog.PricePoint, error)
	CreateAlert(ctx context.Context, productID string, targetPrice float64) error
	Profile(ctx context.Context) (session.UserProfile, error)
	UpdateSettings(ctx context.Context, telegramChatID string) error
}

type StorePrice struct {
	Name  string
	Price float64
}

// MonitoredProduct is one tracked item in the local collection.
type MonitoredProduct struct {
	ID              string
	Name            string
	ImageURL        string
	CurrentPrice    float64
	LowestPriceSeen float64
	History         []catalog.PricePoint
	Stores          []StorePrice
}

func fromSummary(p catalog.Product) MonitoredProduct {
	return MonitoredProduct{
		ID:              p.ID,
		Name:            p.Name,
		ImageURL:        p.ImageURL,
		CurrentPrice:    p.Price,
		LowestPriceSeen: p.Price,
		History:         []catalog.PricePoint{},
		Stores:          []StorePrice{},
	}
}

func (p MonitoredProduct) clone() MonitoredProduct {
	p.History = append([]catalog.PricePoint{}, p.History...)
	p.Stores = append([]StorePrice{}, p.Stores...)
	return p
}

// withHistory returns a copy carrying h, with the lowest price recomputed.
func (p MonitoredProduct) withHistory(h []catalog.PricePoint) MonitoredProduct {
	p = p.clone()
	p.History = append([]catalog.PricePoint{}, h...)
	low := p.CurrentPrice
	for _, pt := range h {
		if pt.Price > 0 && (low <= 0 || pt.Price < low) {
			low = pt.Price
		}
	}
	p.LowestPriceSeen = low
	return p
}

// NoticeKind tells the view layer how to present a notice.
type NoticeKind int

const (
	// NoticeUnavailable is transient and dismissible; the user may retry.
	NoticeUnavailable NoticeKind = iota
	// NoticeSessionExpired follows a forced logout.
	NoticeSessionExpired
)

type Notice struct {
	Kind NoticeKind
	Op   string
	Err  error
}
