package session

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aokellermann/securedrop-go/cryptoutil"
	"github.com/aokellermann/securedrop-go/frame"
	"github.com/aokellermann/securedrop-go/transfer"
)

// pollInterval is how often the shell checks for incoming transfer
// requests while the user is idle at the prompt (spec.md §4.5b).
const pollInterval = time.Second

// Shell drives the interactive client commands (help, add, list, send,
// exit) over a Client, polling for incoming requests between inputs.
// Grounded on cmd/tor-client/main.go's REPL shape.
type Shell struct {
	client   *Client
	accounts *LocalAccounts
	tls      *tls.Config
	logger   *slog.Logger

	out io.Writer
}

// NewShell builds a Shell. tlsConfig is reused for outbound/inbound P2P
// transfer connections.
func NewShell(client *Client, accounts *LocalAccounts, tlsConfig *tls.Config, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{client: client, accounts: accounts, tls: tlsConfig, logger: logger, out: os.Stdout}
}

// Run reads commands from stdin until "exit" or ctx is canceled
// (Ctrl-C), polling for incoming transfer requests at least once a
// second while idle and once more after every command.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(s.out, "securedrop ready. Type 'help' for commands.")
	s.pollAndPrompt(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.pollAndPrompt(ctx)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if line == "exit" {
				return nil
			}
			s.dispatch(ctx, line)
			s.pollAndPrompt(ctx)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		s.printHelp()
	case "add":
		s.cmdAdd(args)
	case "list":
		s.cmdList()
	case "send":
		s.cmdSend(ctx, args)
	default:
		fmt.Fprintf(s.out, "unknown command: %s (try 'help')\n", cmd)
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "commands:")
	fmt.Fprintln(s.out, "  help                       show this text")
	fmt.Fprintln(s.out, "  add <name> <email>         add a contact")
	fmt.Fprintln(s.out, "  list                       list mutual online contacts")
	fmt.Fprintln(s.out, "  send <email> <path>        send a file to a contact")
	fmt.Fprintln(s.out, "  exit                       quit")
}

func (s *Shell) cmdAdd(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "usage: add <name> <email>")
		return
	}
	name := strings.Join(args[:len(args)-1], " ")
	email := args[len(args)-1]
	if err := s.client.AddContact(name, email); err != nil {
		fmt.Fprintf(s.out, "add failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "added %s (%s)\n", name, email)
}

func (s *Shell) cmdList() {
	contacts, err := s.client.ListContacts()
	if err != nil {
		fmt.Fprintf(s.out, "list failed: %v\n", err)
		return
	}
	if len(contacts) == 0 {
		fmt.Fprintln(s.out, "no contacts online")
		return
	}
	for email, name := range contacts {
		fmt.Fprintf(s.out, "  %s <%s>\n", name, email)
	}
}

func (s *Shell) cmdSend(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "usage: send <email> <path>")
		return
	}
	recipient, path := args[0], args[1]

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(s.out, "send failed: %v\n", err)
		return
	}
	hash, err := cryptoutil.HashFile(path)
	if err != nil {
		fmt.Fprintf(s.out, "send failed: %v\n", err)
		return
	}

	if err := s.client.RequestTransfer(recipient, frame.FileInfo{
		Name:   filepath.Base(path),
		Size:   info.Size(),
		SHA256: hash,
	}); err != nil {
		fmt.Fprintf(s.out, "send failed: %v\n", err)
		return
	}

	port, token, err := s.client.AwaitPort()
	if err != nil {
		fmt.Fprintf(s.out, "send failed: %v\n", err)
		return
	}
	if token == "" {
		fmt.Fprintln(s.out, "User declined")
		return
	}

	addr := fmt.Sprintf("%s:%d", s.recipientHost(), port)
	progress := transfer.NewProgress(0)
	if err := transfer.Send(ctx, addr, s.tls, path, token, progress, s.logger); err != nil {
		fmt.Fprintf(s.out, "send failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "send complete")
}

// recipientHost returns the host the sender dials for the P2P transfer.
// It is always the loopback address: FTPT carries only a port and a
// token, and the recipient's network address is not looked up, so a
// transfer only reaches a receiver running on the same machine.
func (s *Shell) recipientHost() string {
	return "127.0.0.1"
}

// pollAndPrompt checks for incoming transfer requests and, if any exist,
// prompts the user to accept one or deny all.
func (s *Shell) pollAndPrompt(ctx context.Context) {
	requests, err := s.client.PollTransfers()
	if err != nil {
		s.logger.Debug("poll failed", "err", err)
		return
	}
	if len(requests) == 0 {
		return
	}

	fmt.Fprintln(s.out, "incoming transfer requests:")
	for sender, fi := range requests {
		fmt.Fprintf(s.out, "  from %s: %s (%d bytes)\n", sender, fi.Name, fi.Size)
	}
	fmt.Fprint(s.out, "accept which sender (email, or blank to deny all)? ")

	var reply string
	fmt.Fscanln(os.Stdin, &reply)

	token, err := s.client.Accept(reply)
	if err != nil {
		fmt.Fprintf(s.out, "accept failed: %v\n", err)
		return
	}
	if reply == "" || token == "" {
		return
	}

	fi := requests[reply]
	s.startReceiver(ctx, fi, token)
}

// startReceiver binds an ephemeral listener, reports its port, and spawns
// an independent goroutine to run the transfer so the control session
// stays responsive (spec.md §4.5c).
func (s *Shell) startReceiver(ctx context.Context, fi frame.FileInfo, token string) {
	recv, err := transfer.Listen(s.tls, s.logger)
	if err != nil {
		fmt.Fprintf(s.out, "accept failed: %v\n", err)
		return
	}

	if err := s.client.SetPort(recv.Port()); err != nil {
		fmt.Fprintf(s.out, "accept failed: %v\n", err)
		recv.Close()
		return
	}

	outputPath := fi.Name
	progress := transfer.NewProgress(0)
	go func() {
		if err := recv.Accept(token, outputPath, progress); err != nil {
			s.logger.Warn("receive failed", "file", outputPath, "err", err)
			return
		}
		s.logger.Info("received file", "file", outputPath)
	}()
	_ = ctx
}
