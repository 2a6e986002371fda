package main

import (
	"fmt"

	appconfig "github.com/haasonsaas/agentcore/internal/config"
	"github.com/spf13/cobra"
)

// buildMigrateCmd applies the store's embedded schema against
// cfg.Database without starting a server or worker. store.NewPostgresStore/
// NewSQLiteStore already apply their schema/*.sql idempotently on
// construction (CREATE TABLE IF NOT EXISTS) - this command exists so an
// operator can provision a database ahead of the first `serve`/`worker`
// run, the way the teacher's `nexus migrate up` lets schema application
// happen out of band from process startup. There is no teacher-style
// up/down/status distinction here: SPEC_FULL.md's store has no
// versioned migration history, only an idempotent "ensure schema"
// step.
func buildMigrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the store's schema to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			defer st.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s database\n", cfg.Database.Driver)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	return cmd
}
