package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetsync/app"
	"github.com/kilianp07/fleetsync/config"
	"github.com/kilianp07/fleetsync/infra/logger"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the field client: capture queue, monitor and sync",
	RunE:  runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	agent, err := app.NewAgent(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := agent.Close(); err != nil {
			logger.New("main").Errorf("agent close: %v", err)
		}
	}()
	return agent.Run(ctx)
}
