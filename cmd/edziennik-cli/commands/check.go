package commands

import (
	"context"
	"fmt"

	"edziennik-backend/internal/changes"

	"github.com/spf13/cobra"
)

type detector = changes.Detector

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Runs a change detection phase once against the configured database.",
}

func checkPhase(use, short string, run func(a detector, ctx context.Context) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			changed, err := run(a.Detector, cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(changed)
			return nil
		},
	}
}

func init() {
	checkCmd.AddCommand(
		checkPhase("fast", "Compares the last update of every user and queues the changed ones.", detector.AnyChanges),
		checkPhase("deep", "Diffs the grades of the oldest queued user and notifies them.", detector.DeepChanges),
	)
	rootCmd.AddCommand(checkCmd)
}
