package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/endpoint-mux/internal/config"
	"github.com/omochice/endpoint-mux/internal/mux"
	"github.com/omochice/endpoint-mux/internal/transport/ws"
	"github.com/omochice/endpoint-mux/pkg/protocol"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return exitConfig, err
	}

	serverURL := flag.String("server", cfg.ServerURL, "WebSocket URL of the endpoint server")
	chatID := flag.Int64("chat", 0, "Chat id to follow title updates for (0 disables)")
	flag.Parse()

	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrinter(os.Stdout)
	m := mux.New(log, ws.Dialer{}, *serverURL, p, p)
	p.attach(m)

	if *chatID != 0 {
		m.RegisterChatTitleHandler(mux.ChatTitleKey{Tag: mux.NewSubscriberTag(), ChatID: *chatID}, p.printTitle)
	}

	if err := m.Connect(ctx); err != nil {
		return exitRuntime, err
	}
	defer func() { _ = m.Close() }()

	fmt.Println("Type '<endpoint> <message>' to send (or 'quit' to exit):")
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Error("Error reading input", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "quit" || text == "exit" {
				return exitOK, nil
			}
			if !m.Connected() {
				return exitRuntime, fmt.Errorf("connection to %s lost", *serverURL)
			}

			endpoint, message, found := strings.Cut(text, " ")
			if !found {
				fmt.Println("usage: <endpoint> <message>")
				continue
			}
			env, err := protocol.NewChatMessage(endpoint, map[string]any{"text": strings.TrimSpace(message)})
			if err != nil {
				log.Error("Failed to build message", "error", err)
				continue
			}
			if err := m.Send(ctx, env); err != nil {
				log.Error("Failed to send message", "error", err)
			}
		}
	}
}
