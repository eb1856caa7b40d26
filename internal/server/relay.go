package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omochice/endpoint-mux/internal/chat"
	"github.com/omochice/endpoint-mux/internal/store"
	"github.com/omochice/endpoint-mux/pkg/protocol"
)

// EndpointGetter looks an endpoint up by address.
type EndpointGetter interface {
	Get(ctx context.Context, address string) (store.Endpoint, error)
}

// Relay returns an InboundFunc that publishes chat messages addressed to a
// registered endpoint back to every client. Anything else is dropped.
func Relay(ctx context.Context, log *slog.Logger, endpoints EndpointGetter, hub *chat.Hub) chat.InboundFunc {
	log = log.With("component", "relay")
	return func(client *chat.Client, env protocol.Envelope) {
		if env.Type != protocol.MessageTypeChatMessage {
			log.Warn("Unexpected message from client", "client", client.ID, "type", env.Type)
			return
		}
		address, ok := env.EndpointName()
		if !ok {
			log.Warn("Message endpoint is null", "client", client.ID)
			return
		}
		if _, err := endpoints.Get(ctx, address); err != nil {
			if errors.Is(err, store.ErrEndpointNotFound) {
				log.Warn("Message for unknown endpoint", "client", client.ID, "endpoint", address)
			}
			return
		}
		if err := hub.Publish(env); err != nil {
			log.Error("Failed to relay message", "client", client.ID, "error", err)
		}
	}
}
