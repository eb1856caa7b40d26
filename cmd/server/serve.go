package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/endpoint-mux/internal/chat"
	"github.com/omochice/endpoint-mux/internal/server"
	"github.com/omochice/endpoint-mux/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the endpoint registry over WebSocket on /ws",
		Long:  `Serve the endpoint registry over WebSocket on /ws.

Clients are told the endpoint list on connect and again whenever the
store changes, e.g. after "endpoints add". Generated chat titles are
accepted on POST /chats/{chatID}/title with a {"title": "..."} body.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			s, err := store.Open(cfg.DBPath, log)
			if err != nil {
				return fmt.Errorf("database opening failed: %w", err)
			}
			defer func() {
				log.Info("Closing endpoint store...")
				_ = s.Close()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for _, address := range cfg.EndpointList() {
				if _, err := s.Ensure(ctx, address); err != nil {
					return fmt.Errorf("failed to seed endpoint %s: %w", address, err)
				}
			}

			hub := chat.NewHub(log, s)
			srv := server.New(log, cfg.Address(), hub, cfg.ClientBufferSize, server.Relay(ctx, log, s, hub))
			go hub.WatchEndpoints(ctx, cfg.PollInterval)

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Start()
			}()

			select {
			case <-ctx.Done():
				log.Info("Shutting down gracefully...")
			case err := <-errChan:
				return err
			}

			srv.Stop()
			log.Info("Server stopped cleanly")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host to listen on (overrides HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides PORT)")
	return cmd
}
