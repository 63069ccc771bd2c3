// Command securedrop-server runs the Coordinator (spec.md §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/aokellermann/securedrop-go/account"
	"github.com/aokellermann/securedrop-go/coordinator"
	"github.com/aokellermann/securedrop-go/tlsutil"
)

func main() {
	hostname := flag.String("hostname", "0.0.0.0", "address to listen on")
	port := flag.Int("port", 6969, "port to listen on")
	filename := flag.String("filename", "server.json", "account store persistence file")
	cert := flag.String("cert", "server.pem", "TLS certificate+key PEM file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*hostname, *port, *filename, *cert, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(hostname string, port int, filename, certPath string, logger *slog.Logger) error {
	store, err := account.NewStore(filename)
	if err != nil {
		return fmt.Errorf("securedrop-server: open store: %w", err)
	}

	tlsConfig, err := tlsutil.ServerConfig(certPath)
	if err != nil {
		return fmt.Errorf("securedrop-server: tls: %w", err)
	}

	c := coordinator.New(store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	addr := fmt.Sprintf("%s:%d", hostname, port)
	return c.ListenAndServe(ctx, addr, tlsConfig)
}
