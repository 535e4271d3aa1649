package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Fetch the NIFTY 50 snapshot once and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newUpstream()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := client.EnsureSession(ctx); err != nil {
			return err
		}
		body, err := client.Index(ctx)
		if err != nil {
			return err
		}
		return printJSON(body)
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL",
	Short: "Fetch quote and trade info for SYMBOL once and print them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		client, err := newUpstream()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := client.EnsureSession(ctx); err != nil {
			return err
		}
		quote, err := client.Quote(ctx, symbol)
		if err != nil {
			return err
		}
		tradeInfo, err := client.TradeInfo(ctx, symbol)
		if err != nil {
			return err
		}
		out, err := json.Marshal(map[string]json.RawMessage{"quote": quote, "tradeInfo": tradeInfo})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func printJSON(raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("indent response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(os.Stdout)
	return err
}
