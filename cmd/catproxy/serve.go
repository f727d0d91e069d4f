package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/catproxy/internal/server"
	"github.com/Sternrassler/catproxy/pkg/catapi"
	"github.com/Sternrassler/catproxy/pkg/logging"
	"github.com/Sternrassler/catproxy/pkg/pagination"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cat proxy HTTP server",
		Long: `Start the cat proxy HTTP server.

Routes:
  GET  /cats                one random cat image
  POST /cats                mock create
  GET  /cats/count?limit=N  N cat images
  GET  /health              liveness
  GET  /metrics             Prometheus metrics`,
		Example: `  # Defaults (port 8080, public cat API)
  catproxy serve

  # Config file plus port override
  catproxy serve --config catproxy.yaml --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger := logging.Setup(cfg.LoggingSetup())

			client, err := catapi.New(cfg.CatAPI())
			if err != nil {
				return fmt.Errorf("create cat API client: %w", err)
			}
			fetcher := pagination.NewBatchFetcher(client, cfg.Pagination())
			srv := server.New(client, fetcher, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cliLogger := logging.NewLogger("cli")
			cliLogger.Info().
				Str("upstream", cfg.Upstream.BaseURL).
				Str("version", Version).
				Msg("catproxy starting")

			return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Server.Port), cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP server port; overrides config")

	return cmd
}
