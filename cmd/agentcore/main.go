// Package main is the CLI entry point for agentcore: a multi-tenant
// service that drives an LLM through a tool-use loop with persisted
// chat state and human-approval pauses.
//
// Grounded on the teacher's cmd/nexus/main.go command-tree shape: one
// root cobra.Command, a buildXCmd() function per subcommand, and a
// JSON slog handler installed as the process default before the root
// command executes. The teacher's channel/skills/memory/mcp/plugin
// subcommand groups have no analogue here — this CLI only exposes the
// three commands SPEC_FULL.md's components need to run: serve, worker,
// migrate.
//
// # Basic usage
//
//	agentcore serve --config agentcore.yaml
//	agentcore worker --config agentcore.yaml
//	agentcore migrate --config agentcore.yaml
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentcore",
		Short:        "agentcore - multi-tenant LLM agent execution engine",
		Version:      version + " (commit: " + commit + ")",
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd(), buildWorkerCmd(), buildMigrateCmd())
	return root
}
