package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	audioimpl "github.com/foxseedlab/zadankai/external/audio"
	gatewayimpl "github.com/foxseedlab/zadankai/external/gateway"
	"github.com/foxseedlab/zadankai/internal/viewer"
)

func main() {
	backend := flag.String("backend", "ws://localhost:8787/ws", "backend websocket URL")
	topic := flag.String("topic", "", "conversation topic")
	characters := flag.String("characters", "", "comma-separated panelist names, chair first")
	language := flag.String("language", "", "conversation language code")
	name := flag.String("name", "Listener", "your name for interjections")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	panel := splitCharacters(*characters)
	if *topic == "" || len(panel) == 0 {
		slog.Error("a topic and at least one character are required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v := viewer.New(gatewayimpl.NewDialer(*backend), viewer.NullSink{}, audioimpl.NewDecoder(), *name, os.Stdout)
	if err := v.Connect(ctx); err != nil {
		slog.Error("connect failed", "error", err)
		os.Exit(1)
	}
	if err := v.Start(*topic, panel, *language); err != nil {
		slog.Error("start conversation failed", "error", err)
		os.Exit(1)
	}

	go readInput(v.Inputs())

	if err := v.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("viewer stopped", "error", err)
		os.Exit(1)
	}
}

func splitCharacters(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readInput(inputs chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		inputs <- scanner.Text()
	}
	inputs <- "quit"
}
