// Command stellarcore-server boots the authoritative simulation
// server: it loads configuration, wires the orchestrator, and runs
// until a termination signal triggers graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stellarcore/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stellarcore-server",
		Short: "StellarCore authoritative simulation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a config file (yaml/json/toml, optional)")
	return cmd
}

func runServer(configPath string) error {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	orch, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("construct orchestrator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return orch.Run(ctx)
}
