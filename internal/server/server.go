// Package server exposes the endpoint hub over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/omochice/endpoint-mux/internal/chat"
	"github.com/omochice/endpoint-mux/internal/transport/ws"
)

// DefaultBufferSize is the outgoing queue length of a client.
const DefaultBufferSize = 10

// Server represents a WebSocket endpoint server
type Server struct {
	log        *slog.Logger
	address    string
	hub        *chat.Hub
	inbound    chat.InboundFunc
	bufferSize int

	// mu also guards stopping, so no client is registered or counted in wg
	// once Stop has begun waiting.
	mu       sync.RWMutex
	listener net.Listener
	server   *http.Server
	stopping bool

	ctx      context.Context
	cancel   context.CancelFunc
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Server listening on address.
// inbound receives every frame sent by a client and may be nil.
func New(log *slog.Logger, address string, hub *chat.Hub, bufferSize int, inbound chat.InboundFunc) *Server {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		log:        log.With("component", "server"),
		address:    address,
		hub:        hub,
		inbound:    inbound,
		bufferSize: bufferSize,
		ctx:        ctx,
		cancel:     cancel,
		quit:       make(chan struct{}),
	}
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("POST /chats/{chatID}/title", s.handleChatTitle)

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{Handler: mux}
	srv := s.server
	s.mu.Unlock()

	s.log.Info("WebSocket server started", "address", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to serve: %w", err)
	case <-s.quit:
		return nil
	}
}

// Stop stops the server and waits for every client to be released.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		srv := s.server
		s.mu.Unlock()

		close(s.quit)
		s.cancel()

		if srv != nil {
			if err := srv.Close(); err != nil {
				s.log.Warn("Failed to close http server", "error", err)
			}
		}

		s.hub.CloseAll()
		s.wg.Wait()
	})
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r)
	if err != nil {
		s.log.Warn("Failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &chat.Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Outgoing: make(chan []byte, s.bufferSize),
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		s.log.Debug("Rejecting client, server is stopping", "remote", conn.RemoteAddr())
		_ = conn.Close()
		return
	}
	s.hub.Register(client)
	s.wg.Add(1)
	s.mu.Unlock()
	s.log.Info("Client connected", "client", client.ID, "remote", conn.RemoteAddr())

	if err := s.hub.Welcome(r.Context(), client); err != nil {
		s.log.Error("Failed to send endpoints", "client", client.ID, "error", err)
	}

	go s.handleClient(client)
}

type chatTitleRequest struct {
	Title string `json:"title"`
}

// handleChatTitle publishes the title generated for a chat to every client.
func (s *Server) handleChatTitle(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.PathValue("chatID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	var req chatTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := s.hub.PublishChatTitle(chatID, req.Title); err != nil {
		s.log.Warn("Rejected chat title", "chat", chatID, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Info("Chat title published", "chat", chatID)
	w.WriteHeader(http.StatusAccepted)
}

// handleClient pumps the outgoing queue of client and reads until it leaves.
func (s *Server) handleClient(client *chat.Client) {
	defer s.wg.Done()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for data := range client.Outgoing {
			if err := client.Conn.Write(s.ctx, data); err != nil {
				s.log.Warn("Failed to send message to client", "client", client.ID, "error", err)
				return
			}
		}
	}()

	s.hub.HandleClient(s.ctx, client, s.inbound)

	// no broadcast can reach the queue once the client is unregistered
	s.hub.Unregister(client)
	close(client.Outgoing)
	if err := client.Conn.Close(); err != nil {
		s.log.Debug("Failed to close client", "client", client.ID, "error", err)
	}
	s.log.Info("Client disconnected", "client", client.ID)
}
