package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"paper_trading/internal/analytics"
	"paper_trading/internal/config"
	"paper_trading/internal/models"
	"paper_trading/internal/session"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newSetupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup [cash]",
		Short: "Start a new portfolio with the given cash",
		Long:  "Start a new portfolio. Without an argument the configured starting cash is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				cash := decimal.NewFromFloat(a.cfg.Portfolio.StartingCash)
				if len(args) == 1 {
					v, err := decimal.NewFromString(args[0])
					if err != nil {
						return fmt.Errorf("invalid cash %q: %w", args[0], err)
					}
					cash = v
				}
				if err := a.session.Setup(cmd.Context(), cash); err != nil {
					return err
				}
				cmd.Printf("Portfolio started with $%s cash.\n", cash.StringFixed(2))
				return nil
			})
		},
	}
}

func newTradeCmd(opts *rootOptions, verb string) *cobra.Command {
	var (
		price    string
		stopLoss string
		reason   string
	)
	action := models.Buy
	if verb == "sell" {
		action = models.Sell
	}

	cmd := &cobra.Command{
		Use:   verb + " <ticker> <shares>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " shares at a given price or the latest close",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tradeRequest(action, args, price, stopLoss, reason)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				res, err := a.session.Trade(cmd.Context(), req)
				if err != nil {
					return err
				}
				e := res.Entry
				cmd.Printf("%s %s %s @ $%s. Cash: $%s\n",
					e.Action, e.Shares.String(), e.Ticker, e.Price.StringFixed(2), res.Cash.StringFixed(2))
				if e.Action == models.Sell {
					cmd.Printf("Realized PnL: $%s\n", e.PnL.StringFixed(2))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "fill price; defaults to the latest close")
	cmd.Flags().StringVar(&reason, "reason", "", "free-text reason recorded in the trade log")
	if action == models.Buy {
		cmd.Flags().StringVar(&stopLoss, "stop-loss", "", "advisory stop-loss price")
	}
	return cmd
}

// tradeRequest parses the positional arguments and flags of buy/sell.
func tradeRequest(action models.TradeAction, args []string, price, stopLoss, reason string) (session.TradeRequest, error) {
	req := session.TradeRequest{
		Ticker: args[0],
		Action: action,
		Reason: reason,
	}
	shares, err := decimal.NewFromString(args[1])
	if err != nil {
		return req, fmt.Errorf("invalid shares %q: %w", args[1], err)
	}
	req.Shares = shares
	if price != "" {
		p, err := decimal.NewFromString(price)
		if err != nil {
			return req, fmt.Errorf("invalid price %q: %w", price, err)
		}
		req.Price = decimal.NewNullDecimal(p)
	}
	if stopLoss != "" {
		sl, err := decimal.NewFromString(stopLoss)
		if err != nil {
			return req, fmt.Errorf("invalid stop loss %q: %w", stopLoss, err)
		}
		req.StopLoss = sl
	}
	return req, nil
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop all positions without selling them and keep cash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				row, err := a.session.ResetPortfolio(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Print(session.FormatRows([]models.LedgerRow{row}))
				return nil
			})
		},
	}
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Value every position at the latest close and record the day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				rows, err := a.session.RunDailyUpdate(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Print(session.FormatRows(rows))
				return nil
			})
		},
	}
}

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"status"},
		Short:   "Show positions at current prices without recording anything",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				d, err := a.session.DashboardSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Print(session.FormatDashboard(d))
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List total equity per recorded day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				points, err := a.session.History(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Print(session.FormatHistory(points))
				return nil
			})
		},
	}
}

func newAnalyticsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Report return, drawdown, volatility and Sharpe ratio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				r, err := a.session.Analytics(cmd.Context())
				if errors.Is(err, analytics.ErrInsufficientData) {
					cmd.Println("Not enough history for analytics.")
					return nil
				}
				if err != nil {
					return err
				}
				cmd.Print(session.FormatAnalytics(r))
				return nil
			})
		},
	}
}

func newPriceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "price <ticker>",
		Short: "Show the latest daily close for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				q, err := a.session.CurrentPrice(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("%s: $%s (%s)\n", q.Ticker, q.Price.StringFixed(2), q.AsOf.Format(models.DateLayout))
				return nil
			})
		},
	}
}

func newTradesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "List the trade log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				entries, err := a.session.Trades(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Print(session.FormatTrades(entries))
				return nil
			})
		},
	}
}

func newShellCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Read commands line by line from stdin",
		Long:  "Interactive mode. Type help for the list of commands, quit or exit to leave.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				cmd.Print("> ")
				for scanner.Scan() {
					line := strings.TrimSpace(scanner.Text())
					switch line {
					case "":
					case "quit", "exit", "/quit", "/exit":
						return nil
					default:
						cmd.Println(a.session.HandleCommand(cmd.Context(), line))
					}
					if cmd.Context().Err() != nil {
						return nil
					}
					cmd.Print("> ")
				}
				return scanner.Err()
			})
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			for _, w := range cfg.Warnings {
				cmd.Println("warning:", w)
			}
			for _, line := range cfg.Describe() {
				cmd.Println(line)
			}
			return nil
		},
	}
}
