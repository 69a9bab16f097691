package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("tickergram failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()
	var logCloser io.Closer = io.NopCloser(nil)

	cmd := &cobra.Command{
		Use:           "tickergram",
		Short:         "Telegram bot for stock quotes, charts and watchlists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v, args)
			logger, closer, err := newLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			logCloser = closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logCloser.Close()
		},
	}
	addConfigFlags(cmd.PersistentFlags())
	_ = v.BindPFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRunCmd(v))
	cmd.AddCommand(newNotifyCmd(v))
	return cmd
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run [token]",
		Short: "Run the bot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v, args)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			tg, repo, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if cfg.PIDFile != "" {
				if _, err := writePIDFile(cfg.PIDFile); err != nil {
					slog.Warn("write pid file failed", "path", cfg.PIDFile, "err", err)
				} else {
					defer os.Remove(cfg.PIDFile)
				}
			}
			slog.Info("Bot is running", "pid", os.Getpid(), "username", tg.UserName(), "store", cfg.Store, "auth", cfg.Password != "")

			bot := NewBot(cfg, Deps{
				Repo:     repo,
				Msg:      tg,
				Provider: NewYahooProvider(cfg.QuoteURL),
				Charts:   NewCandleChart(cfg.ChartFont),
				Shots:    NewChromeScreenshotter(cfg.ScreenshotTimeout),
			})
			bot.Run(ctx)
			return nil
		},
	}
}

func newNotifyCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify [token]",
		Short: "Send the watchlist summary to chats with notifications enabled",
		Long: "Sends a message with the current status of the watchlist to the chats with enabled notifications. " +
			"With --interval it keeps sending until interrupted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v, args)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			tg, repo, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			notifier := NewNotifier(repo, NewQuoteService(repo, NewYahooProvider(cfg.QuoteURL)), tg, cfg.NotifyRate)
			return runNotifier(ctx, notifier, cfg.NotifyInterval)
		},
	}
	cmd.Flags().Duration("interval", 0, "Repeat every interval until interrupted, 0 runs once")
	_ = v.BindPFlag("interval", cmd.Flags().Lookup("interval"))
	return cmd
}

// runNotifier runs one batch, or one every interval until ctx is done.
func runNotifier(ctx context.Context, n *Notifier, interval time.Duration) error {
	runOnce := func() error {
		start := time.Now()
		report, err := n.Run(ctx, nil)
		slog.Info("notify run finished", "chats", report.Chats, "sent", report.Sent,
			"disabled", report.Disabled, "skipped", report.Skipped, "took", time.Since(start))
		return err
	}

	if interval <= 0 {
		return runOnce()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := runOnce(); err != nil && ctx.Err() == nil {
			slog.Error("notify run failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// connect checks the token with getMe and the store with a ping.
func connect(ctx context.Context, cfg Config) (*telegramClient, *Repository, error) {
	slog.Info("Checking Telegram API token ...")
	tg, err := NewTelegramClient(cfg.Token, cfg.APIEndpoint, cfg.PollTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram API token is invalid: %w", err)
	}

	slog.Info("Checking store connectivity ...", "store", cfg.Store)
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	repo := NewRepository(store)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("unable to reach %s store: %w", cfg.Store, err)
	}
	return tg, repo, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			slog.Info("Shutting down ...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func writePIDFile(path string) (int, error) {
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return pid, err
	}
	return pid, nil
}
