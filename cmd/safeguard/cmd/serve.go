package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flockops/safeguard/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver and read API",
	Long: `Start the HTTP server that receives MinistrySafe webhook deliveries and
serves the read API over reconciled records.

Examples:
  # Start with defaults (:8080)
  safeguard serve

  # Start on a custom address
  safeguard serve --listen 127.0.0.1:3000`,
	RunE: runServe,
}

var serveListen string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "",
		"listen address (overrides server.listen)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	rt, err := buildRuntime(logger)
	if err != nil {
		return err
	}
	defer rt.close()

	addr := rt.cfg.Server.Listen
	if serveListen != "" {
		addr = serveListen
	}

	server := api.NewServer(api.Config{
		WebhookSecret:  rt.cfg.Server.WebhookSecret,
		CheckTypeID:    rt.cfg.Workflow.CheckTypeID,
		TrainingTypeID: rt.cfg.Workflow.TrainingTypeID,
		RequestTimeout: rt.cfg.Server.RequestTimeout,
	}, rt.engine, rt.store,
		api.WithLogger(logger),
		api.WithCheckEnricher(rt.vendor),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx, addr, rt.cfg.Server.ShutdownTimeout)
}
