package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-merlea/sc-krogan-public/integrations/exports"
	"github.com/dan-merlea/sc-krogan-public/integrations/history"
)

func exportCmd() *cobra.Command {
	var (
		driver string
		dsn    string
		since  string
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded settlements from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from := time.Time{}
			if since != "" {
				parsed, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				from = parsed
			}
			store, err := history.Open(driver, dsn)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.SettlementsSince(cmd.Context(), from)
			if err != nil {
				return err
			}
			var (
				data     []byte
				checksum string
			)
			switch strings.ToLower(format) {
			case "csv":
				data, checksum, err = exports.SettlementsCSV(rows)
			case "jsonl":
				data, checksum, err = exports.SettlementsJSONL(rows)
			case "parquet":
				data, checksum, err = exports.SettlementsParquet(rows)
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
			if err != nil {
				return err
			}
			if out == "" {
				out = "settlements." + strings.ToLower(format)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d settlements, sha256 %s)\n", out, len(rows), checksum)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "history driver (sqlite or postgres)")
	cmd.Flags().StringVar(&dsn, "dsn", "./airdrop-data/history.db", "history DSN")
	cmd.Flags().StringVar(&since, "since", "", "only settlements at or after this RFC3339 time")
	cmd.Flags().StringVar(&format, "format", "csv", "csv, jsonl or parquet")
	cmd.Flags().StringVar(&out, "out", "", "output path")
	return cmd
}
