package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AlexYaroshenko/pricewatch/internal/catalog"
)

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List monitored products",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			if !a.sess.Get().IsAuthenticated() {
				fmt.Fprintln(a.out, a.t("signed_out_body"))
				return nil
			}
			ps, err := a.syncer.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if len(ps) == 0 {
				fmt.Fprintln(a.out, a.t("no_products"))
				return nil
			}
			return writeProducts(a.out, ps)
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "Start monitoring the product at url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			p, err := a.syncer.AddProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %s %s (%s)\n", a.t("product_added"), p.ID, p.Name, formatPrice(p.CurrentPrice))
			return nil
		},
	}
}

func (c *cli) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Stop monitoring a product",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			if err := a.syncer.RemoveProduct(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %s\n", a.t("product_removed"), args[0])
			return nil
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a product with its price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			p, err := a.syncer.LoadDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeDetail(a.out, a.t("lowest"), p)
		},
	}
}

func (c *cli) alertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alert <id> <target-price>",
		Short: "Get notified when a product drops to the target price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			price, err := strconv.ParseFloat(strings.Replace(args[1], ",", ".", 1), 64)
			if err != nil {
				return &catalog.Error{Op: "alert", Err: catalog.ErrInvalid, Detail: fmt.Sprintf("target price %q is not a number", args[1])}
			}
			if err := a.syncer.CreateAlert(cmd.Context(), args[0], price); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %s ≤ %s\n", a.t("alert_created"), args[0], formatPrice(price))
			return nil
		},
	}
}
