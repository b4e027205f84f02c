package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AlexYaroshenko/pricewatch/internal/telegram"
	"github.com/AlexYaroshenko/pricewatch/internal/web"
)

func (c *cli) loginCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser",
		Long: `Starts a local callback server and prints the sign-in address.
After the provider redirects back with a token the session is stored
and the server stops. Use --token to install a token directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			ctx := cmd.Context()
			if token != "" {
				if err := a.sess.Login(ctx, token); err != nil {
					return err
				}
			} else if err := a.awaitRedirect(ctx); err != nil {
				return err
			}

			p, err := a.syncer.LoadProfile(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, a.t("signed_in_title"))
			fmt.Fprintf(a.out, "  %s <%s>\n", p.Name, p.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token to install instead of the browser flow")
	return cmd
}

// awaitRedirect serves the landing route until a token arrives.
func (a *app) awaitRedirect(ctx context.Context) error {
	srv := web.NewServer(a.cfg.CallbackAddr, a.sess, a.syncer, a.registry, a.log.Named("web"))
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}
	fmt.Fprintf(a.out, "%s:\n  %s\n", a.t("open_browser"), a.client.LoginURL(a.cfg.Provider))
	fmt.Fprintf(a.out, "  callback: http://%s/\n", srv.Addr())

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(sctx) }()

	select {
	case <-srv.Done():
	case err := <-errc:
		return err
	case <-ctx.Done():
		cancel()
		<-errc
		return ctx.Err()
	}
	cancel()
	if err := <-errc; err != nil {
		a.log.Warn("callback server shutdown", zap.Error(err))
	}
	return nil
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.app.sess.Logout(cmd.Context())
			fmt.Fprintln(c.app.out, c.app.t("signed_out"))
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			p, err := a.syncer.LoadProfile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "id:         %s\n", p.ID)
			fmt.Fprintf(a.out, "name:       %s\n", p.Name)
			fmt.Fprintf(a.out, "email:      %s\n", p.Email)
			if p.TelegramChatID != "" {
				fmt.Fprintf(a.out, "telegram:   %s\n", p.TelegramChatID)
			}
			fmt.Fprintf(a.out, "persistent: %t\n", a.sess.Persistent())
			return nil
		},
	}
}

func (c *cli) telegramCmd() *cobra.Command {
	var (
		noWait bool
		poll   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "telegram [chat-id]",
		Short: "Link Telegram for alert delivery",
		Long: `Without arguments prints the bot link and waits until the bot has
linked the chat. With a chat id stores it directly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			ctx := cmd.Context()

			if len(args) == 1 {
				chatID, err := telegram.ParseChatID(args[0])
				if err != nil {
					return err
				}
				if _, err := a.syncer.LinkTelegram(ctx, chatID); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s: %s\n", a.t("telegram_linked"), chatID)
				return nil
			}

			p, err := a.syncer.LoadProfile(ctx)
			if err != nil {
				return err
			}
			link, err := telegram.ConnectLink(a.cfg.TelegramBot, p.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s:\n  %s\n", a.t("telegram_connect"), link)
			if noWait {
				return nil
			}
			p, err = telegram.WaitForLink(ctx, a.syncer.LoadProfile, poll, a.log.Named("telegram"))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %s\n", a.t("telegram_linked"), p.TelegramChatID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the link and exit")
	cmd.Flags().DurationVar(&poll, "poll", 3*time.Second, "profile poll interval while waiting")
	return cmd
}
