package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hongminglow/aratiri-client/internal/app"
	"github.com/hongminglow/aratiri-client/internal/models"
	"github.com/hongminglow/aratiri-client/internal/payment"
)

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [invoice|lnurl|address|user@domain]",
		Short: "Pay an invoice, LNURL, Lightning address or Bitcoin address",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			form, err := a.Payments.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch in := form.Intent().(type) {
			case payment.ResolutionError:
				return in
			case payment.LightningInvoice:
				desc := in.Description
				if desc == "" {
					desc = "No description"
				}
				fmt.Fprintf(out, "Invoice for %s sats: %s\n", models.FormatSats(in.AmountSats), desc)
			case payment.LnurlPayable:
				fmt.Fprintf(out, "%s (%s - %s sats)\n", in.Description(), models.FormatSats(in.MinSendableSats()), models.FormatSats(in.MaxSendableSats()))
			case payment.OnchainAddress:
				fmt.Fprintf(out, "On-chain send to %s\n", in.Address)
			}

			if payment.NeedsAmount(form.Intent()) {
				amount, _ := cmd.Flags().GetString("amount")
				if amount, err = prompt(cmd, "Amount (sats)", amount); err != nil {
					return err
				}
				form.SetAmount(amount)
			}
			if p, ok := form.Intent().(payment.LnurlPayable); ok && p.CommentAllowedChars > 0 {
				comment, _ := cmd.Flags().GetString("comment")
				form.SetComment(comment)
			}
			if form.Intent().Kind() == payment.KindOnchainAddress {
				quote, err := a.Payments.Quote(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Network fee: %s sats\n", models.FormatSats(quote.FeeSats()))
			}

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				answer, err := prompt(cmd, "Send? [y/N]", "")
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			outcome, err := a.Payments.Submit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Status: %s\n", outcome.Status)
			return nil
		}),
	}
	cmd.Flags().StringP("amount", "a", "", "Amount in sats for LNURL and on-chain payments")
	cmd.Flags().StringP("comment", "c", "", "Comment for LNURL payments that accept one")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and report incoming and outgoing payments",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if !a.Sessions.Authenticated() {
				return fmt.Errorf("not logged in")
			}
			if err := a.ReadModel.Refresh(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Watching for payments. Press Ctrl+C to stop.")
			return a.Watch(ctx)
		}),
	}
}
