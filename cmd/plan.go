package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/core/control"
)

var (
	planDump string
	planAt   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Replay a debug dump through the planner",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planDump, "dump", "", "debug dump file (.json or .yaml)")
	planCmd.Flags().StringVar(&planAt, "at", "", "planning time in RFC3339, defaults to the dump timestamp")
	_ = planCmd.MarkFlagRequired("dump")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(planDump)
	if err != nil {
		return fmt.Errorf("read dump: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(planDump)), ".")
	d, err := control.DecodeDump(data, format)
	if err != nil {
		return err
	}
	var at time.Time
	if planAt != "" {
		at, err = time.Parse(time.RFC3339, planAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}
	dec := d.Replay(at)
	out := struct {
		Status   string `json:"status"`
		Plan     string `json:"plan"`
		Decision any    `json:"decision"`
	}{
		Status:   control.StatusText(d.Sensor.Plugged, dec),
		Plan:     control.PlanText(d.Sensor.Plugged, dec),
		Decision: dec,
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
