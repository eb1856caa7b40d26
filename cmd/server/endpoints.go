package main

import (
	"fmt"

	"github.com/omochice/endpoint-mux/internal/store"
	"github.com/spf13/cobra"
)

func newEndpointsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Manage registered endpoints",
	}

	addCmd := &cobra.Command{
		Use:   "add <address>...",
		Short: "Register one or more endpoint addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: opts.withStore(func(cmd *cobra.Command, args []string, s *store.Store) error {
			for _, address := range args {
				id, err := s.Create(cmd.Context(), address)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, address)
			}
			return nil
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <address>",
		Short: "Show one endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withStore(func(cmd *cobra.Command, args []string, s *store.Store) error {
			e, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderEndpoints(cmd, []store.Endpoint{e})
			return nil
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List endpoints in registration order",
		Args:  cobra.NoArgs,
		RunE: opts.withStore(func(cmd *cobra.Command, _ []string, s *store.Store) error {
			endpoints, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			renderEndpoints(cmd, endpoints)
			return nil
		}),
	}

	removeCmd := &cobra.Command{
		Use:   "remove <address>...",
		Short: "Remove endpoints and their chat associations",
		Args:  cobra.MinimumNArgs(1),
		RunE: opts.withStore(func(cmd *cobra.Command, args []string, s *store.Store) error {
			for _, address := range args {
				if err := s.Remove(cmd.Context(), address); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every endpoint",
		Args:  cobra.NoArgs,
		RunE: opts.withStore(func(cmd *cobra.Command, _ []string, s *store.Store) error {
			return s.RemoveAll(cmd.Context())
		}),
	}

	cmd.AddCommand(addCmd, getCmd, listCmd, removeCmd, clearCmd)
	return cmd
}
