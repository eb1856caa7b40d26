package main

import (
	"github.com/omochice/endpoint-mux/internal/store"
	"github.com/spf13/cobra"
)

func newChatsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage which endpoints take part in a chat",
	}

	assignCmd := &cobra.Command{
		Use:   "assign <chat-id> <address>",
		Short: "Associate an endpoint with a chat",
		Args:  cobra.ExactArgs(2),
		RunE: opts.withStore(func(cmd *cobra.Command, args []string, s *store.Store) error {
			chatID, e, err := chatEndpoint(cmd, args, s)
			if err != nil {
				return err
			}
			return s.AssignEndpoint(cmd.Context(), chatID, e.ID)
		}),
	}

	unassignCmd := &cobra.Command{
		Use:   "unassign <chat-id> <address>",
		Short: "Remove an endpoint from a chat",
		Args:  cobra.ExactArgs(2),
		RunE: opts.withStore(func(cmd *cobra.Command, args []string, s *store.Store) error {
			chatID, e, err := chatEndpoint(cmd, args, s)
			if err != nil {
				return err
			}
			return s.UnassignEndpoint(cmd.Context(), chatID, e.ID)
		}),
	}

	endpointsCmd := &cobra.Command{
		Use:   "endpoints <chat-id>",
		Short: "List endpoints associated with a chat",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withStore(func(cmd *cobra.Command, args []string, s *store.Store) error {
			chatID, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			list, err := s.EndpointsForChat(cmd.Context(), chatID)
			if err != nil {
				return err
			}
			renderEndpoints(cmd, list)
			return nil
		}),
	}

	unassignedCmd := &cobra.Command{
		Use:   "unassigned <chat-id>",
		Short: "List endpoints not yet associated with a chat",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withStore(func(cmd *cobra.Command, args []string, s *store.Store) error {
			chatID, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			list, err := s.UnassignedEndpointsForChat(cmd.Context(), chatID)
			if err != nil {
				return err
			}
			renderEndpoints(cmd, list)
			return nil
		}),
	}

	cmd.AddCommand(assignCmd, unassignCmd, endpointsCmd, unassignedCmd)
	return cmd
}

// chatEndpoint resolves the <chat-id> <address> argument pair.
func chatEndpoint(cmd *cobra.Command, args []string, s *store.Store) (int64, store.Endpoint, error) {
	chatID, err := parseChatID(args[0])
	if err != nil {
		return 0, store.Endpoint{}, err
	}
	e, err := s.Get(cmd.Context(), args[1])
	if err != nil {
		return 0, store.Endpoint{}, err
	}
	return chatID, e, nil
}
