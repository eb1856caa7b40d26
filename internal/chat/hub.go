package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/omochice/endpoint-mux/pkg/protocol"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client represents a connected client with transport-agnostic connection.
type Client struct {
	ID       string
	Conn     Conn
	Outgoing chan []byte
}

// EndpointLister returns the addresses of the registered endpoints.
type EndpointLister interface {
	Addresses(ctx context.Context) ([]string, error)
}

// InboundFunc receives every envelope sent by a client.
type InboundFunc func(client *Client, env protocol.Envelope)

// Hub manages all connected clients and fans server events out to them.
type Hub struct {
	log       *slog.Logger
	endpoints EndpointLister
	clients   map[*Client]bool
	mu        sync.RWMutex
}

// NewHub creates a new Hub announcing the addresses of endpoints.
func NewHub(log *slog.Logger, endpoints EndpointLister) *Hub {
	return &Hub{
		log:       log.With("component", "hub"),
		endpoints: endpoints,
		clients:   make(map[*Client]bool),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes the connection of every registered client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if err := client.Conn.Close(); err != nil {
			h.log.Warn("Failed to close client", "client", client.ID, "error", err)
		}
	}
}

// Welcome queues the current endpoint list for a freshly connected client.
func (h *Hub) Welcome(ctx context.Context, client *Client) error {
	data, err := h.registerEndpointsFrame(ctx)
	if err != nil {
		return err
	}
	h.send(client, data)
	return nil
}

// AnnounceEndpoints sends the current endpoint list to every client.
func (h *Hub) AnnounceEndpoints(ctx context.Context) error {
	data, err := h.registerEndpointsFrame(ctx)
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// WatchEndpoints polls the endpoint store every interval and announces the
// list to every client whenever it differs from the last one seen. It returns
// when ctx is done.
func (h *Hub) WatchEndpoints(ctx context.Context, interval time.Duration) {
	last, err := h.endpoints.Addresses(ctx)
	if err != nil {
		h.log.Warn("Failed to list endpoints", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		addresses, err := h.endpoints.Addresses(ctx)
		if err != nil {
			if ctx.Err() == nil {
				h.log.Warn("Failed to list endpoints", "error", err)
			}
			continue
		}
		if slices.Equal(addresses, last) {
			continue
		}
		last = addresses

		data, err := encodeRegisterEndpoints(addresses)
		if err != nil {
			h.log.Error("Failed to encode endpoints", "error", err)
			continue
		}
		h.log.Info("Endpoints changed", "endpoints", addresses)
		h.broadcast(data)
	}
}

// PublishChatMessage sends backend data addressed to endpoint to every client.
func (h *Hub) PublishChatMessage(endpoint string, data *structpb.Struct) error {
	raw, err := protojson.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode chat data: %w", err)
	}
	env, err := protocol.NewChatMessage(endpoint, json.RawMessage(raw))
	if err != nil {
		return err
	}
	return h.Publish(env)
}

// PublishChatTitle announces the title generated for chatID.
func (h *Hub) PublishChatTitle(chatID int64, title string) error {
	env, err := protocol.NewChatTitleCreated(chatID, title)
	if err != nil {
		return err
	}
	return h.Publish(env)
}

// Publish sends env to every client.
func (h *Hub) Publish(env protocol.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// HandleClient reads frames from client until the connection fails, passing
// every decoded envelope to inbound when it is not nil.
// The caller is responsible for unregistering the client afterwards.
func (h *Hub) HandleClient(ctx context.Context, client *Client, inbound InboundFunc) {
	for {
		data, err := client.Conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				h.log.Warn("Error reading from client", "client", client.ID, "error", err)
			}
			return
		}

		var env protocol.Envelope
		if err := env.Decode(data); err != nil {
			h.log.Warn("Failed to decode message", "client", client.ID, "error", err)
			continue
		}
		h.log.Debug("Message from client", "client", client.ID, "type", env.Type)
		if inbound != nil {
			inbound(client, env)
		}
	}
}

func (h *Hub) registerEndpointsFrame(ctx context.Context) ([]byte, error) {
	addresses, err := h.endpoints.Addresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	return encodeRegisterEndpoints(addresses)
}

func encodeRegisterEndpoints(addresses []string) ([]byte, error) {
	env, err := protocol.NewRegisterEndpoints(addresses)
	if err != nil {
		return nil, err
	}
	return env.Encode()
}

// broadcast sends data to all clients, skipping those whose queue is full.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		h.send(client, data)
	}
}

func (h *Hub) send(client *Client, data []byte) {
	select {
	case client.Outgoing <- data:
	default:
		h.log.Warn("Client channel full, skipping", "client", client.ID)
	}
}
