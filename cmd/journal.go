package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/journal"
)

var (
	journalSince time.Duration
	journalKind  string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Print action and session journal records",
	RunE:  runJournal,
}

func init() {
	journalCmd.Flags().DurationVar(&journalSince, "since", 24*time.Hour, "how far back to read")
	journalCmd.Flags().StringVar(&journalKind, "kind", "", "record kind: action or session")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Journal.Backend == "" {
		return fmt.Errorf("journal is disabled")
	}
	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return err
	}
	defer store.Close()

	q := journal.Query{Start: time.Now().Add(-journalSince), Kind: journal.Kind(journalKind)}
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range recs {
		ts := r.Timestamp.Local().Format("2006-01-02 15:04")
		switch {
		case r.Session != nil:
			fmt.Fprintf(out, "%s session %.0f%% -> %.0f%%, %.2f kWh, %.2f %s\n", ts, r.Session.StartSoC, r.Session.EndSoC, r.Session.AddedKWh, r.Session.TotalCost, r.Session.Currency)
		default:
			fmt.Fprintf(out, "%s %s %s\n", ts, r.Kind, r.Message)
		}
	}
	return nil
}
