package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AlexYaroshenko/pricewatch/internal/catalog"
	"github.com/AlexYaroshenko/pricewatch/internal/i18n"
	"github.com/AlexYaroshenko/pricewatch/internal/productsync"
)

type cli struct {
	v        *viper.Viper
	out      io.Writer
	errOut   io.Writer
	envFiles []string
	app      *app
}

func newCLI(out, errOut io.Writer, envFiles ...string) *cli {
	return &cli{v: viper.New(), out: out, errOut: errOut, envFiles: envFiles}
}

func (c *cli) run(ctx context.Context, args []string) error {
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	defer func() {
		if c.app != nil {
			c.app.close()
		}
	}()
	return root.ExecuteContext(ctx)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pricewatch",
		Short:         "Track product prices and alerts from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.v, c.out, c.errOut, c.envFiles...)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (yaml, json or toml)")
	pf.String("api-url", "", "catalog service base URL")
	pf.String("store", "", "token store: bolt, postgres, redis or memory")
	pf.String("lang", "", "message language (en, pt, de, fr, es)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	for key, flag := range map[string]string{
		"config":    "config",
		"api_url":   "api-url",
		"store":     "store",
		"lang":      "lang",
		"log_level": "log-level",
	} {
		_ = c.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.listCmd(),
		c.addCmd(),
		c.removeCmd(),
		c.showCmd(),
		c.alertCmd(),
		c.telegramCmd(),
		c.watchCmd(),
	)
	return root
}

// describe turns a command error into a localized line for the terminal.
func (c *cli) describe(err error) string {
	lang := i18n.FromEnv("")
	if c.app != nil {
		lang = c.app.lang
	}
	t := func(key string) string { return i18n.T(lang, key) }

	var ce *catalog.Error
	detail := ""
	if errors.As(err, &ce) && ce.Detail != "" {
		detail = ": " + ce.Detail
	}
	switch {
	case errors.Is(err, catalog.ErrInvalid):
		return t("invalid_input") + detail
	case errors.Is(err, catalog.ErrNotFound):
		return t("not_found")
	case errors.Is(err, catalog.ErrUnauthorized):
		if ce != nil && ce.Status == 0 {
			return t("signed_out_body")
		}
		if c.app != nil && c.app.watching {
			// the watch loop already printed the notice
			return ""
		}
		return t("session_expired")
	case errors.Is(err, catalog.ErrUnavailable):
		return t("service_unavailable") + detail
	case errors.Is(err, productsync.ErrStale):
		return t("session_expired")
	default:
		return err.Error()
	}
}
