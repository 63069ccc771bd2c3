// Command securedrop is the interactive file-transfer client (spec.md
// §4.5, §6).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/aokellermann/securedrop-go/session"
	"github.com/aokellermann/securedrop-go/tlsutil"
)

// minPasswordLen is the client-side password floor spec.md §4.2 calls
// out: the account store itself only rejects a duplicate hash or an
// invalid email, so a short password must be caught here.
const minPasswordLen = 12

func main() {
	hostname := flag.String("hostname", "127.0.0.1", "coordinator address")
	port := flag.Int("port", 6969, "coordinator port")
	filename := flag.String("filename", "client.json", "local registered-accounts file")
	cert := flag.String("cert", "server.pem", "coordinator's TLS certificate PEM file")
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
	accounts, err := session.LoadLocalAccounts(filename)
	if err != nil {
		return fmt.Errorf("securedrop: local accounts: %w", err)
	}

	tlsConfig, err := tlsutil.ClientConfig(certPath)
	if err != nil {
		return fmt.Errorf("securedrop: tls: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	addr := fmt.Sprintf("%s:%d", hostname, port)
	client, err := session.Dial(ctx, addr, tlsConfig, logger)
	if err != nil {
		return fmt.Errorf("securedrop: connect: %w", err)
	}
	defer client.Close()

	if err := authenticate(client, accounts); err != nil {
		return fmt.Errorf("securedrop: authenticate: %w", err)
	}

	shell := session.NewShell(client, accounts, tlsConfig, logger)
	return shell.Run(ctx)
}

// authenticate performs the mandatory register-or-login handshake before
// any other command is accepted (spec.md §4.5a).
func authenticate(client *session.Client, accounts *session.LocalAccounts) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("email: ")
	email, _ := reader.ReadString('\n')
	email = trimNewline(email)

	fmt.Print("password: ")
	password, _ := reader.ReadString('\n')
	password = trimNewline(password)

	fmt.Print("name (leave blank to log in to an existing account): ")
	name, _ := reader.ReadString('\n')
	name = trimNewline(name)

	if name != "" {
		if len(password) < minPasswordLen {
			return fmt.Errorf("password is too short! password must be at least %d characters", minPasswordLen)
		}
		if err := client.Register(name, email, password); err != nil {
			return err
		}
	} else {
		if err := client.Login(email, password); err != nil {
			return err
		}
	}
	return accounts.Add(email)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
