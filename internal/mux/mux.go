// Package mux multiplexes a single client connection over many endpoints.
//
// A Multiplexer owns one logical connection to the endpoint server. Every
// inbound frame is decoded into a protocol.Envelope and routed by type:
// register-endpoints replaces the known endpoint set, on-chat-message goes to
// the one handler registered for its endpoint, and on-chat-title-created fans
// out to every subscriber of the chat id.
//
// Handler registrations belong to the Multiplexer, not to the connection, so
// they survive a close and a later Connect. There is no automatic reconnect.
package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/omochice/endpoint-mux/internal/chat"
	"github.com/omochice/endpoint-mux/pkg/protocol"
	"github.com/samber/lo"
)

var ErrAlreadyConnected = errors.New("connection already in progress or open")

// Dialer opens a new connection to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (chat.Conn, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, url string) (chat.Conn, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context, url string) (chat.Conn, error) {
	return f(ctx, url)
}

// Multiplexer is the session scoped owner of the connection state.
type Multiplexer struct {
	log            *slog.Logger
	url            string
	dialer         Dialer
	endpointsState EndpointsState
	chatEntries    ChatEntries

	mu        sync.RWMutex
	state     State
	conn      chat.Conn
	endpoints []string

	// notifyMu orders SetEndpoints and ClearEndpoints with the state change
	// that caused them. Collaborators must not call Close from SetEndpoints.
	notifyMu sync.Mutex

	handlers      registry[string]
	titleHandlers registry[ChatTitleKey]
}

// New creates a Multiplexer for url. Nil collaborators are replaced by no-ops.
func New(log *slog.Logger, dialer Dialer, url string, endpointsState EndpointsState, chatEntries ChatEntries) *Multiplexer {
	if endpointsState == nil {
		endpointsState = nopEndpointsState{}
	}
	if chatEntries == nil {
		chatEntries = nopChatEntries{}
	}
	return &Multiplexer{
		log:            log.With("component", "mux", "url", url),
		url:            url,
		dialer:         dialer,
		endpointsState: endpointsState,
		chatEntries:    chatEntries,
		state:          StateClosed,
	}
}

// Connect opens a new connection and starts dispatching inbound frames.
// It returns once the connection is open.
func (m *Multiplexer) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateClosed {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, state)
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		m.log.Error("WebSocket error", "error", err)
		m.mu.Lock()
		m.state = StateClosed
		m.mu.Unlock()
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateOpen
	m.mu.Unlock()
	m.log.Info("WebSocket is connected", "remote", conn.RemoteAddr())

	go m.receiveMessages(conn)
	return nil
}

// Close closes the connection if it is open. Calling it in any other state
// does nothing.
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	if m.state != StateOpen {
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosing
	conn := m.conn
	m.mu.Unlock()

	err := conn.Close()
	m.closed(conn)
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Connected reports whether the connection is open.
func (m *Multiplexer) Connected() bool {
	return m.State() == StateOpen
}

// State returns the current lifecycle phase.
func (m *Multiplexer) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Endpoints returns the endpoint addresses last announced by the server.
func (m *Multiplexer) Endpoints() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.endpoints)
}

// Send encodes msg and writes it as one frame. When the connection is not
// open the message is dropped with a warning and Send returns nil.
func (m *Multiplexer) Send(ctx context.Context, msg any) error {
	m.mu.RLock()
	conn, state := m.conn, m.state
	m.mu.RUnlock()

	if state != StateOpen || conn == nil {
		m.log.Warn("WebSocket is not connected. Message not sent.", "state", state)
		return nil
	}

	data, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, data); err != nil {
		m.log.Error("Failed to send message", "error", err)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// RegisterHandler routes on-chat-message envelopes for endpoint to h,
// replacing any previous handler.
func (m *Multiplexer) RegisterHandler(endpoint string, h Handler) {
	m.handlers.register(endpoint, h)
}

// UnregisterHandler removes the handler for endpoint.
func (m *Multiplexer) UnregisterHandler(endpoint string) {
	m.handlers.unregister(endpoint)
}

// RegisterChatTitleHandler subscribes h to chat-title-created events of
// key.ChatID.
func (m *Multiplexer) RegisterChatTitleHandler(key ChatTitleKey, h Handler) {
	m.titleHandlers.register(key, h)
}

// UnregisterChatTitleHandler removes the subscription for key.
func (m *Multiplexer) UnregisterChatTitleHandler(key ChatTitleKey) {
	m.titleHandlers.unregister(key)
}

// HandleFrame decodes one inbound frame and dispatches it.
// Decoding errors are logged and returned; the connection stays open.
func (m *Multiplexer) HandleFrame(data []byte) error {
	var env protocol.Envelope
	if err := env.Decode(data); err != nil {
		m.log.Warn("Dropping undecodable frame", "error", err)
		return err
	}
	return m.Dispatch(env)
}

// Dispatch routes a decoded envelope. Unaddressed, invalid or unmatched
// messages are dropped with a warning, as are endpoint announcements received
// while the connection is not open.
func (m *Multiplexer) Dispatch(env protocol.Envelope) error {
	payload, err := env.Payload()
	if err != nil {
		m.log.Warn("Dropping message with invalid payload", "type", env.Type, "error", err)
		return err
	}

	switch p := payload.(type) {
	case protocol.ChatTitleCreated:
		m.dispatchChatTitle(env, p)
	case protocol.RegisterEndpoints:
		m.registerEndpoints(p.Endpoints)
	case protocol.ChatMessage:
		m.dispatchChatMessage(env)
	default:
		return fmt.Errorf("%w: %T", protocol.ErrUnknownType, payload)
	}
	return nil
}

func (m *Multiplexer) dispatchChatTitle(env protocol.Envelope, p protocol.ChatTitleCreated) {
	if err := p.Validate(); err != nil {
		m.log.Warn("Chat title not handled", "error", err)
		return
	}

	chatID := *p.ChatID
	for _, h := range m.titleHandlers.match(func(k ChatTitleKey) bool { return k.ChatID == chatID }) {
		h(env)
	}
}

func (m *Multiplexer) registerEndpoints(list []string) {
	endpoints := lo.Uniq(list)

	m.notifyMu.Lock()
	m.mu.Lock()
	if m.state != StateOpen {
		state := m.state
		m.mu.Unlock()
		m.notifyMu.Unlock()
		m.log.Warn("Endpoints announced while not connected. Message not handled.", "state", state)
		return
	}
	m.endpoints = endpoints
	m.mu.Unlock()
	m.endpointsState.SetEndpoints(slices.Clone(endpoints))
	m.notifyMu.Unlock()

	for _, endpoint := range endpoints {
		m.chatEntries.CreateChatEntriesByEndpoint(endpoint)
	}
}

func (m *Multiplexer) dispatchChatMessage(env protocol.Envelope) {
	endpoint, ok := env.EndpointName()
	if !ok {
		m.log.Warn("Message endpoint is null. Message not handled.")
		return
	}

	h, ok := m.handlers.get(endpoint)
	if !ok {
		m.log.Warn("No handler registered for endpoint. Message not handled.", "endpoint", endpoint)
		return
	}
	h(env)
}

// receiveMessages reads frames from conn until it fails, then marks the
// connection closed.
func (m *Multiplexer) receiveMessages(conn chat.Conn) {
	ctx := context.Background()
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			switch {
			case !m.isOpen(conn):
			case errors.Is(err, io.EOF):
				m.log.Info("WebSocket is closed")
			default:
				m.log.Error("WebSocket error", "error", err)
			}
			m.closed(conn)
			return
		}
		if !m.isOpen(conn) {
			// buffered frames read after Close belong to a finished session
			m.closed(conn)
			return
		}
		_ = m.HandleFrame(data)
	}
}

// isOpen reports whether conn is the current connection and still open.
func (m *Multiplexer) isOpen(conn chat.Conn) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn == conn && m.state == StateOpen
}

// closed moves conn to StateClosed and clears the known endpoint set.
// Handler registrations are kept.
func (m *Multiplexer) closed(conn chat.Conn) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateClosed
	m.endpoints = nil
	m.mu.Unlock()

	m.endpointsState.ClearEndpoints()
}
