package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlexYaroshenko/pricewatch/internal/catalog"
	"github.com/AlexYaroshenko/pricewatch/internal/productsync"
)

func (c *cli) watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll monitored products and print price changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			if interval <= 0 {
				interval = a.cfg.WatchInterval
			}
			return a.watch(cmd.Context(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from watch_interval)")
	return cmd
}

// watch prints the collection once, then only what changed on every poll.
// It ends when ctx is cancelled or the session is lost.
func (a *app) watch(ctx context.Context, interval time.Duration) error {
	if !a.sess.Get().IsAuthenticated() {
		return &catalog.Error{Op: "watch", Err: catalog.ErrUnauthorized, Detail: "not signed in"}
	}
	a.watching = true
	a.start(ctx)
	a.syncer.Wait()

	current := a.syncer.Products()
	if !a.sess.Get().IsAuthenticated() {
		return &catalog.Error{Op: "watch", Status: 401, Err: catalog.ErrUnauthorized}
	}
	if len(current) == 0 {
		fmt.Fprintln(a.out, a.t("no_products"))
	} else if err := writeProducts(a.out, current); err != nil {
		return err
	}
	prev := byID(current)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		ps, err := a.syncer.Refresh(ctx)
		switch {
		case errors.Is(err, catalog.ErrUnauthorized):
			return err
		case errors.Is(err, productsync.ErrStale):
			return &catalog.Error{Op: "watch", Status: 401, Err: catalog.ErrUnauthorized}
		case err != nil:
			// notice already shown; keep the previous poll for comparison
			continue
		}
		changes := diffPrices(prev, ps)
		if len(changes) > 0 {
			fmt.Fprintf(a.out, "%s %s\n", time.Now().Format("15:04:05"), a.t("price_changed"))
			for _, ch := range changes {
				fmt.Fprintln(a.out, "  "+formatChange(ch))
			}
		}
		prev = byID(ps)
	}
}
