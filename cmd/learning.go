package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/persistence"
	infrapersist "github.com/kilianp07/smartcharge/infra/persistence"
)

var learningCmd = &cobra.Command{
	Use:   "learning",
	Short: "Charger efficiency learning commands",
}

var learningResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the learned charger loss to the configured value",
	RunE:  runLearningReset,
}

func init() {
	learningCmd.AddCommand(learningResetCmd)
	rootCmd.AddCommand(learningCmd)
}

func runLearningReset(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := infrapersist.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := store.Load(ctx)
	if errors.Is(err, persistence.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "no persisted state, nothing to reset")
		return nil
	}
	if err != nil {
		return err
	}
	st.Learning = model.NewLearningState(cfg.Charging.ChargerLossPct)
	st.Version = persistence.StateVersion
	st.SavedAt = time.Now()
	if err := store.Save(ctx, st); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "learning reset, charger loss %.1f%%\n", st.Learning.LossPct)
	return nil
}
