package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hongminglow/aratiri-client/internal/app"
	"github.com/hongminglow/aratiri-client/internal/models"
	"github.com/hongminglow/aratiri-client/internal/wallet"
)

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet balance and receive endpoints",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			unitFlag, _ := cmd.Flags().GetString("unit")
			unit := wallet.Unit(strings.ToLower(unitFlag))
			if !slices.Contains(wallet.Units, unit) {
				return fmt.Errorf("unknown unit %q (want sats, btc or fiat)", unitFlag)
			}

			if err := a.ReadModel.Refresh(ctx); err != nil {
				return err
			}
			snap, _ := a.ReadModel.Snapshot()
			currency, err := a.Preferences.Currency(ctx, a.Wallet.Currencies(ctx))
			if err != nil {
				return err
			}
			visible, err := a.Preferences.BalanceVisible(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance: %s %s\n", wallet.FormatBalance(snap.Account, unit, currency, visible), unit.Label(currency))
			fmt.Fprintf(out, "Lightning address: %s\n", snap.Account.Alias)
			fmt.Fprintf(out, "LNURL: %s\n", snap.Account.Lnurl)
			fmt.Fprintf(out, "On-chain address: %s\n", snap.Account.BitcoinAddress)
			return nil
		}),
	}
	cmd.Flags().StringP("unit", "u", string(wallet.UnitSats), "Display unit: sats, btc or fiat")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transactions",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				return fmt.Errorf("days must be positive")
			}
			now := time.Now()
			txs, err := a.Wallet.Transactions(ctx, now.AddDate(0, 0, -days), now)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transactions yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tRAIL\tAMOUNT\tSTATUS")
			for _, tx := range txs {
				when := tx.Date
				if ts, err := tx.Time(); err == nil {
					when = models.RelativeDate(ts, now)
				}
				sign := "-"
				if tx.Type.IsCredit() {
					sign = "+"
				}
				fmt.Fprintf(w, "%s\t%s\t%s%s sats\t%s\n", when, tx.Type.Rail(), sign, models.FormatSats(tx.Amount), tx.Status)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntP("days", "d", wallet.DefaultHistoryDays, "How many days back to list")
	return cmd
}

func receiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive [sats]",
		Short: "Create a Lightning invoice for an amount",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			sats, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("amount must be a whole number of sats")
			}
			memo, _ := cmd.Flags().GetString("memo")
			inv, err := a.Wallet.CreateInvoice(ctx, sats, memo)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), inv.PaymentRequest)
			return nil
		}),
	}
	cmd.Flags().StringP("memo", "m", "", "Description shown to the payer")
	return cmd
}

func currencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "currency [code]",
		Short: "Show or set the fiat currency used for balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			available := a.Wallet.Currencies(ctx)
			if len(args) == 0 {
				current, err := a.Preferences.Currency(ctx, available)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (available: %s)\n", strings.ToUpper(current), strings.ToUpper(strings.Join(available, ", ")))
				return nil
			}
			code := strings.ToLower(args[0])
			if !slices.Contains(available, code) {
				return fmt.Errorf("currency %q is not offered (available: %s)", args[0], strings.Join(available, ", "))
			}
			return a.Preferences.SetCurrency(ctx, code)
		}),
	}
}

func themeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "theme [Default|Aratiri|Bitcoin]",
		Short: "Show or set the theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if len(args) == 0 {
				t, err := a.Preferences.Theme(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t)
				return nil
			}
			t, err := wallet.ParseTheme(args[0])
			if err != nil {
				return err
			}
			return a.Preferences.SetTheme(ctx, t)
		}),
	}
}

func visibilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "visibility [show|hide]",
		Short:     "Show or hide the balance amount",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"show", "hide"},
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			switch args[0] {
			case "show":
				return a.Preferences.SetBalanceVisible(ctx, true)
			case "hide":
				return a.Preferences.SetBalanceVisible(ctx, false)
			default:
				return fmt.Errorf("want show or hide, got %q", args[0])
			}
		}),
	}
}
