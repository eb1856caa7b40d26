package mux

//go:generate mockgen -source=sink.go -destination=../../mocks/mock_sink.go -package=mocks

// EndpointsState receives the set of endpoints announced by the server.
type EndpointsState interface {
	SetEndpoints(endpoints []string)
	ClearEndpoints()
}

// ChatEntries creates the per-endpoint data context for a newly announced
// endpoint.
type ChatEntries interface {
	CreateChatEntriesByEndpoint(endpoint string)
}

type nopEndpointsState struct{}

func (nopEndpointsState) SetEndpoints([]string) {}
func (nopEndpointsState) ClearEndpoints()       {}

type nopChatEntries struct{}

func (nopChatEntries) CreateChatEntriesByEndpoint(string) {}
