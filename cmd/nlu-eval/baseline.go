package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fractal-lba/nlueval/internal/baseline"
)

// baselineCmd inspects stored baselines
func baselineCmd() *cobra.Command {
	var store storeFlags

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect stored baselines",
	}

	var (
		buildID string
		label   string
	)
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored baseline record",
		Long:  `Prints the record for --build-id, or the latest record for --test-label.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.open()
			if err != nil {
				return fmt.Errorf("failed to open baseline store: %w", err)
			}
			defer st.Close()

			var rec *baseline.Record
			if buildID != "" {
				rec, err = st.Get(cmd.Context(), buildID)
			} else {
				rec, err = st.Latest(cmd.Context(), label)
			}
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no baseline found (build id %q, label %q)", buildID, label)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	showCmd.Flags().StringVar(&buildID, "build-id", "", "Build id of the record")
	showCmd.Flags().StringVar(&label, "test-label", "", "Show the latest record for this label when --build-id is empty")

	cmd.AddCommand(showCmd)
	store.register(cmd, "file")

	return cmd
}
