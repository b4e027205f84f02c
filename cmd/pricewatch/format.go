package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/AlexYaroshenko/pricewatch/internal/productsync"
)

func formatPrice(p float64) string {
	return fmt.Sprintf("%.2f", p)
}

func writeProducts(w io.Writer, ps []productsync.MonitoredProduct) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, formatPrice(p.CurrentPrice))
	}
	return tw.Flush()
}

func writeDetail(w io.Writer, lowestLabel string, p productsync.MonitoredProduct) error {
	fmt.Fprintf(w, "%s  %s\n", p.ID, p.Name)
	fmt.Fprintf(w, "%s (%s %s)\n", formatPrice(p.CurrentPrice), lowestLabel, formatPrice(p.LowestPriceSeen))
	if p.ImageURL != "" {
		fmt.Fprintln(w, p.ImageURL)
	}
	if len(p.History) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, pt := range p.History {
		fmt.Fprintf(tw, "%s\t%s\n", pt.Date.Format("2006-01-02 15:04"), formatPrice(pt.Price))
	}
	return tw.Flush()
}

// priceChange is one line of watch output.
type priceChange struct {
	ID       string
	Name     string
	Old, New float64
	Added    bool
	Removed  bool
}

// diffPrices compares the previous poll with the current collection.
// Output is ordered by the current collection, removed items last.
func diffPrices(prev map[string]productsync.MonitoredProduct, next []productsync.MonitoredProduct) []priceChange {
	var changes []priceChange
	seen := make(map[string]bool, len(next))
	for _, p := range next {
		seen[p.ID] = true
		old, ok := prev[p.ID]
		switch {
		case !ok:
			changes = append(changes, priceChange{ID: p.ID, Name: p.Name, New: p.CurrentPrice, Added: true})
		case old.CurrentPrice != p.CurrentPrice:
			changes = append(changes, priceChange{ID: p.ID, Name: p.Name, Old: old.CurrentPrice, New: p.CurrentPrice})
		}
	}
	var removed []priceChange
	for id, p := range prev {
		if !seen[id] {
			removed = append(removed, priceChange{ID: id, Name: p.Name, Old: p.CurrentPrice, Removed: true})
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return append(changes, removed...)
}

func byID(ps []productsync.MonitoredProduct) map[string]productsync.MonitoredProduct {
	m := make(map[string]productsync.MonitoredProduct, len(ps))
	for _, p := range ps {
		m[p.ID] = p
	}
	return m
}

func formatChange(c priceChange) string {
	var b strings.Builder
	switch {
	case c.Added:
		fmt.Fprintf(&b, "+ %s %s: %s", c.ID, c.Name, formatPrice(c.New))
	case c.Removed:
		fmt.Fprintf(&b, "- %s %s", c.ID, c.Name)
	case c.New < c.Old:
		fmt.Fprintf(&b, "↓ %s %s: %s → %s", c.ID, c.Name, formatPrice(c.Old), formatPrice(c.New))
	default:
		fmt.Fprintf(&b, "↑ %s %s: %s → %s", c.ID, c.Name, formatPrice(c.Old), formatPrice(c.New))
	}
	return b.String()
}
