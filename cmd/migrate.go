package cmd

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema (indexes for mongo)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer s.Close()
		logger.Infof("schema of %s backend is up to date", cfg.StorageBackend)
		return nil
	},
}
