package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tayjaybabee/jet-bridge/internal/server"
	"github.com/tayjaybabee/jet-bridge/pkg/jetbridge"
)

// serveCmd reflects every configured connection in the background and
// serves the HTTP API until interrupted.
func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve starts the HTTP API and reflects every configured connection on the
worker pool. Requests for a connection fail with 404 until its reflection is
installed; GET /status reports progress meanwhile.`,
		Example: `  jetbridge serve --listen :9090
  jetbridge serve -d postgres://localhost/shop --overlay overlay.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			client, err := newClient(cfg, jetbridge.WithRegisterer(reg))
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			go func() {
				if err := client.Watch(ctx); err != nil {
					logger.Warn("overlay watcher stopped", "error", err)
				}
			}()

			for _, cc := range cfg.Connections {
				startReflection(ctx, client, cc)
			}

			srv := server.New(client, server.Options{
				Addr:     cfg.Listen,
				Gatherer: reg,
				Logger:   logger,
			})
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from config, :8080)")
	return cmd
}

// startReflection schedules one connection and logs its outcome.
func startReflection(ctx context.Context, client *jetbridge.Client, cc ConnectionConfig) {
	r, err := client.Start(ctx, cc.connectionConfig())
	if err != nil {
		logger.Error("reflection not started", "connection", cc.Name, "error", err)
		return
	}
	go func() {
		conn, err := r.Wait(ctx)
		if err != nil {
			logger.Error("reflection failed", "connection", cc.Name, "error", err)
			return
		}
		logger.Info("connection ready",
			"connection", cc.Name,
			"tables", conn.Model.Len(),
			"skipped", len(r.Warnings()))
	}()
}
