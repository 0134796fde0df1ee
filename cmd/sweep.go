package cmd

import (
	"fmt"

	"capstone/service"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove messages and attachments whose conversation is gone",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := service.NewSweeper(s).Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned records\n", n)
		return nil
	},
}
