package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/omochice/endpoint-mux/internal/config"
	"github.com/omochice/endpoint-mux/internal/store"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// options are the flags shared by every command.
type options struct {
	envFile  string
	dbPath   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "endpoint-server",
		Short: "Endpoint registry and WebSocket multiplexing server",
		Long: `endpoint-server keeps the registry of compute endpoints and serves it to
multiplexing clients over a single WebSocket connection.

Use 'endpoint-server serve' to start the server and the endpoints and chats
commands to manage the registry.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Env file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides ENDPOINT_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	cmd.AddCommand(newServeCmd(opts), newEndpointsCmd(opts), newChatsCmd(opts))
	return cmd
}

// load reads the configuration and applies the flag overrides.
func (o *options) load() (config.Server, *slog.Logger, error) {
	var files []string
	if o.envFile != "" {
		files = append(files, o.envFile)
	}
	cfg, err := config.LoadServer(files...)
	if err != nil {
		return config.Server{}, nil, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		level, err := config.NormalizeLogLevel(o.logLevel)
		if err != nil {
			return config.Server{}, nil, err
		}
		cfg.LogLevel = level
	}
	return cfg, logs.GetLoggerFromString(cfg.LogLevel), nil
}

// storeFunc is a command body working on an open store.
type storeFunc func(cmd *cobra.Command, args []string, s *store.Store) error

// withStore runs fn against the configured store and closes it afterwards.
func (o *options) withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := o.load()
		if err != nil {
			return err
		}
		s, err := store.Open(cfg.DBPath, log)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		return fn(cmd, args, s)
	}
}

func renderEndpoints(cmd *cobra.Command, endpoints []store.Endpoint) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"ID", "Endpoint"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(lo.Map(endpoints, func(e store.Endpoint, _ int) []string {
		return []string{strconv.FormatInt(e.ID, 10), e.Address}
	}))
	table.Render()
}

func parseChatID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", arg, err)
	}
	return id, nil
}
