// cmd/queue-manager/serve.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"exam-queue/internal/api"
	"exam-queue/internal/lookup"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the queues and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("address"); addr != "" {
			cfg.Server.Address = addr
		}

		log := newLogger(cfg)
		log.Info("Starting queue manager...", map[string]interface{}{
			"version":     cfg.App.Version,
			"environment": cfg.App.Environment,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := build(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer c.close()

		report, err := c.syncer.Bootstrap(ctx)
		if err != nil {
			return err
		}
		log.Info("Queues loaded", map[string]interface{}{
			"source":  report.Source,
			"version": report.Version,
		})
		c.syncer.Start(ctx)

		facade := lookup.New(c.store, cfg.Sync.PerStudent(), cfg.Sync.DisplayLimit)
		var lister api.EvaluationLister
		if c.archive != nil {
			lister = c.archive
		}
		server := api.NewServer(facade, c.syncer, lister, log)

		err = server.ListenAndServe(ctx, cfg.Server.Address)
		log.Info("Queue manager stopped", nil)
		return err
	},
}

func init() {
	serveCmd.Flags().StringP("address", "a", "", "listen address (overrides server.address)")
	rootCmd.AddCommand(serveCmd)
}
