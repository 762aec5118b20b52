package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hongminglow/aratiri-client/internal/app"
	"github.com/hongminglow/aratiri-client/internal/config"
	"github.com/hongminglow/aratiri-client/internal/notify"
)

var Version = "dev"

func main() {
	// A local .env may carry ARATIRI_* settings during development.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "aratiri",
		Short:         "Aratiri - custodial Lightning wallet client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log client internals to stderr")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(googleLoginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(forgotCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(receiveCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(currencyCmd())
	rootCmd.AddCommand(themeCmd())
	rootCmd.AddCommand(visibilityCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openApp loads configuration and wires the client. Notifications are echoed
// to stderr as they are pushed.
func openApp(cmd *cobra.Command) (*app.App, error) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		log.SetOutput(io.Discard)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	stderr := cmd.ErrOrStderr()
	return app.New(cmd.Context(), cfg, app.WithNotificationObserver(func(n notify.Notification) {
		fmt.Fprintf(stderr, "[%s] %s: %s\n", n.Kind, n.Title, n.Message)
	}))
}

// withApp runs fn against a wired client and closes it afterwards.
func withApp(fn func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), cmd, a, args)
	}
}

var stdin *bufio.Reader

// prompt reads one line from stdin when value is empty.
func prompt(cmd *cobra.Command, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if stdin == nil {
		stdin = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}
