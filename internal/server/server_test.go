package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/omochice/endpoint-mux/internal/chat"
	"github.com/omochice/endpoint-mux/internal/mux"
	"github.com/omochice/endpoint-mux/internal/store"
	"github.com/omochice/endpoint-mux/internal/transport/ws"
	"github.com/omochice/endpoint-mux/pkg/protocol"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type running struct {
	srv   *Server
	hub   *chat.Hub
	store *store.Store
	errCh chan error
}

func (r *running) url() string {
	return "ws://" + r.srv.Addr() + "/ws"
}

func startServer(t *testing.T, endpoints ...string) *running {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	st, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	for _, e := range endpoints {
		_, err := st.Create(ctx, e)
		require.NoError(t, err)
	}

	hub := chat.NewHub(log, st)
	srv := New(log, "127.0.0.1:0", hub, 0, Relay(ctx, log, st, hub))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	t.Cleanup(srv.Stop)

	require.Eventually(t, func() bool { return srv.Addr() != "" }, waitFor, 10*time.Millisecond)
	return &running{srv: srv, hub: hub, store: st, errCh: errCh}
}

func connect(t *testing.T, url string) *mux.Multiplexer {
	t.Helper()
	m := mux.New(slog.New(slog.DiscardHandler), ws.Dialer{}, url, nil, nil)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestServer_StartStop(t *testing.T) {
	r := startServer(t)

	r.srv.Stop()

	select {
	case err := <-r.errCh:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Server did not stop in time")
	}
}

func TestServer_SendsEndpointsOnConnect(t *testing.T) {
	// Given a server with two registered endpoints
	r := startServer(t, "http://gpu-1:11434", "http://gpu-2:11434")

	// When a multiplexer connects
	m := connect(t, r.url())

	// Then it learns the endpoint list
	require.Eventually(t, func() bool { return len(m.Endpoints()) == 2 }, waitFor, 10*time.Millisecond)
	require.Equal(t, []string{"http://gpu-1:11434", "http://gpu-2:11434"}, m.Endpoints())
	require.Eventually(t, func() bool { return r.srv.ClientCount() == 1 }, waitFor, 10*time.Millisecond)
}

func TestServer_AnnounceEndpoints(t *testing.T) {
	r := startServer(t)
	m := connect(t, r.url())
	require.Eventually(t, func() bool { return r.srv.ClientCount() == 1 }, waitFor, 10*time.Millisecond)

	// When an endpoint is added and announced
	_, err := r.store.Create(context.Background(), "http://gpu-3:11434")
	require.NoError(t, err)
	require.NoError(t, r.hub.AnnounceEndpoints(context.Background()))

	// Then the client replaces its set
	require.Eventually(t, func() bool { return len(m.Endpoints()) == 1 }, waitFor, 10*time.Millisecond)
	require.Equal(t, []string{"http://gpu-3:11434"}, m.Endpoints())
}

func TestServer_RelaysChatMessage(t *testing.T) {
	// Given a client with a handler for a registered endpoint
	r := startServer(t, "http://gpu-1:11434")
	m := connect(t, r.url())

	got := make(chan protocol.Envelope, 1)
	m.RegisterHandler("http://gpu-1:11434", func(env protocol.Envelope) { got <- env })
	require.Eventually(t, func() bool { return len(m.Endpoints()) == 1 }, waitFor, 10*time.Millisecond)

	// When the client sends a message to that endpoint
	env, err := protocol.NewChatMessage("http://gpu-1:11434", map[string]any{"prompt": "hello"})
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), env))

	// Then the relayed message is routed back to the handler
	select {
	case received := <-got:
		require.Equal(t, protocol.MessageTypeChatMessage, received.Type)
		require.JSONEq(t, `{"prompt":"hello"}`, string(received.Data))
	case <-time.After(waitFor):
		t.Fatal("chat message was not relayed")
	}
}

func TestServer_DropsMessageForUnknownEndpoint(t *testing.T) {
	r := startServer(t, "http://gpu-1:11434")
	m := connect(t, r.url())

	got := make(chan protocol.Envelope, 2)
	for _, e := range []string{"http://gpu-1:11434", "http://nowhere"} {
		m.RegisterHandler(e, func(env protocol.Envelope) { got <- env })
	}
	require.Eventually(t, func() bool { return len(m.Endpoints()) == 1 }, waitFor, 10*time.Millisecond)

	unknown, err := protocol.NewChatMessage("http://nowhere", "x")
	require.NoError(t, err)
	known, err := protocol.NewChatMessage("http://gpu-1:11434", "y")
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), unknown))
	require.NoError(t, m.Send(context.Background(), known))

	// frames are handled in order, so the first delivery must be the known one
	select {
	case received := <-got:
		endpoint, _ := received.EndpointName()
		require.Equal(t, "http://gpu-1:11434", endpoint)
	case <-time.After(waitFor):
		t.Fatal("chat message was not relayed")
	}
	require.Empty(t, got)
}

func TestServer_PublishChatTitle(t *testing.T) {
	r := startServer(t)
	m := connect(t, r.url())
	require.Eventually(t, func() bool { return r.srv.ClientCount() == 1 }, waitFor, 10*time.Millisecond)

	got := make(chan protocol.Envelope, 1)
	m.RegisterChatTitleHandler(mux.ChatTitleKey{Tag: "sidebar", ChatID: 9}, func(env protocol.Envelope) { got <- env })

	require.NoError(t, r.hub.PublishChatTitle(9, "Release plan"))

	select {
	case received := <-got:
		payload, err := received.Payload()
		require.NoError(t, err)
		require.Equal(t, "Release plan", payload.(protocol.ChatTitleCreated).Title)
	case <-time.After(waitFor):
		t.Fatal("chat title was not delivered")
	}
}

func TestServer_ClientDisconnect(t *testing.T) {
	r := startServer(t)
	m := connect(t, r.url())
	require.Eventually(t, func() bool { return r.srv.ClientCount() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, m.Close())

	require.Eventually(t, func() bool { return r.srv.ClientCount() == 0 }, waitFor, 10*time.Millisecond)
	require.False(t, m.Connected())
}

func TestServer_StopClosesClients(t *testing.T) {
	r := startServer(t)
	m := connect(t, r.url())
	require.Eventually(t, func() bool { return r.srv.ClientCount() == 1 }, waitFor, 10*time.Millisecond)

	r.srv.Stop()

	require.Eventually(t, func() bool { return m.State() == mux.StateClosed }, waitFor, 10*time.Millisecond)
	require.Empty(t, m.Endpoints())
}

func TestServer_ChatTitleRoute(t *testing.T) {
	// Given a connected client listening for titles of chat 9
	r := startServer(t)
	m := connect(t, r.url())
	require.Eventually(t, func() bool { return r.srv.ClientCount() == 1 }, waitFor, 10*time.Millisecond)

	got := make(chan protocol.Envelope, 1)
	m.RegisterChatTitleHandler(mux.ChatTitleKey{Tag: "sidebar", ChatID: 9}, func(env protocol.Envelope) { got <- env })

	// When the title generator posts a title for that chat
	resp, err := http.Post("http://"+r.srv.Addr()+"/chats/9/title", "application/json", strings.NewReader(`{"title":"Release plan"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Then the client receives it
	select {
	case received := <-got:
		payload, err := received.Payload()
		require.NoError(t, err)
		require.Equal(t, "Release plan", payload.(protocol.ChatTitleCreated).Title)
	case <-time.After(waitFor):
		t.Fatal("chat title was not delivered")
	}
}

func TestServer_ChatTitleRoute_BadRequest(t *testing.T) {
	r := startServer(t)
	base := "http://" + r.srv.Addr() + "/chats/"

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "non numeric chat id", path: "abc/title", body: `{"title":"x"}`},
		{name: "malformed body", path: "1/title", body: `{`},
		{name: "empty title", path: "1/title", body: `{"title":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(base+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			_ = resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServer_RejectsClientAfterStop(t *testing.T) {
	// Given a server that has already been stopped
	log := slog.New(slog.DiscardHandler)
	st, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	srv := New(log, "127.0.0.1:0", chat.NewHub(log, st), 0, nil)
	srv.Stop()

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)

	// When a late upgrade reaches the handler
	conn, err := ws.Dial(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// Then the connection is closed without being registered
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	_, err = conn.Read(ctx)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, srv.ClientCount())
}
