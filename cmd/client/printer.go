package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/omochice/endpoint-mux/internal/mux"
	"github.com/omochice/endpoint-mux/pkg/protocol"
	"google.golang.org/protobuf/encoding/protojson"
)

// handlerRegistrar is the part of the multiplexer the printer subscribes with.
type handlerRegistrar interface {
	RegisterHandler(endpoint string, h mux.Handler)
}

// printer writes routed traffic to out. It is the endpoint state and the
// chat entry factory of the command line client.
type printer struct {
	mu  sync.Mutex
	out io.Writer
	reg handlerRegistrar
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) attach(reg handlerRegistrar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reg = reg
}

// SetEndpoints implements mux.EndpointsState.
func (p *printer) SetEndpoints(endpoints []string) {
	p.printf("*** endpoints: %s ***\n", strings.Join(endpoints, ", "))
}

// ClearEndpoints implements mux.EndpointsState.
func (p *printer) ClearEndpoints() {
	p.printf("*** disconnected ***\n")
}

// CreateChatEntriesByEndpoint implements mux.ChatEntries.
func (p *printer) CreateChatEntriesByEndpoint(endpoint string) {
	p.mu.Lock()
	reg := p.reg
	p.mu.Unlock()
	if reg == nil {
		return
	}
	reg.RegisterHandler(endpoint, p.printChat)
}

func (p *printer) printChat(env protocol.Envelope) {
	endpoint, _ := env.EndpointName()
	payload, err := env.Payload()
	if err != nil {
		p.printf("[%s] <invalid: %v>\n", endpoint, err)
		return
	}
	msg, ok := payload.(protocol.ChatMessage)
	if !ok {
		return
	}
	value, err := msg.Value()
	if err != nil {
		p.printf("[%s] <invalid: %v>\n", endpoint, err)
		return
	}
	text, err := protojson.Marshal(value)
	if err != nil {
		p.printf("[%s] <invalid: %v>\n", endpoint, err)
		return
	}
	p.printf("[%s]: %s\n", endpoint, text)
}

func (p *printer) printTitle(env protocol.Envelope) {
	payload, err := env.Payload()
	if err != nil {
		return
	}
	if title, ok := payload.(protocol.ChatTitleCreated); ok && title.ChatID != nil {
		p.printf("*** chat %d is now %q ***\n", *title.ChatID, title.Title)
	}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

var (
	_ mux.EndpointsState = (*printer)(nil)
	_ mux.ChatEntries    = (*printer)(nil)
)
