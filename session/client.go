// Package session drives a Coordinator connection from the user side:
// registration/login, contact management, and initiating or accepting
// transfers (spec.md §4.5). Its orchestration mirrors
// cmd/tor-client/main.go's sequential client loop.
package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/aokellermann/securedrop-go/frame"
)

// Client is a single authenticated control-plane connection to the
// Coordinator. Every method is synchronous, matching the reference's
// cooperative single-stream-at-a-time model (spec.md §5's FIFO-per-
// session ordering guarantee): most write one frame and read exactly the
// reply they expect; AwaitPort only reads, and SetPort and a deny-all
// Accept only write.
type Client struct {
	conn   net.Conn
	reader *frame.Reader
	writer *frame.Writer
	logger *slog.Logger

	Email string // set once Register or Login succeeds
}

// Dial opens a TLS control connection to the Coordinator at addr.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := &tls.Dialer{Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		reader: frame.NewReader(conn),
		writer: frame.NewWriter(conn),
		logger: logger,
	}, nil
}

// Close tears down the control connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(tag string, req, resp any) error {
	f, err := frame.New(tag, req)
	if err != nil {
		return fmt.Errorf("session: build %s: %w", tag, err)
	}
	if err := c.writer.WriteFrame(f); err != nil {
		return fmt.Errorf("session: send %s: %w", tag, err)
	}
	reply, err := c.reader.ReadFrame()
	if err != nil {
		return fmt.Errorf("session: await reply to %s: %w", tag, err)
	}
	if resp != nil {
		if err := reply.Decode(resp); err != nil {
			return fmt.Errorf("session: decode reply to %s: %w", tag, err)
		}
	}
	return nil
}

// Register performs the RGTR handshake. On success, Email is set and
// subsequent calls are authenticated.
func (c *Client) Register(name, email, password string) error {
	var status frame.StatusPayload
	if err := c.roundTrip(frame.TagRegister, frame.RegisterPayload{Name: name, Email: email, Password: password}, &status); err != nil {
		return err
	}
	if status.Message != "" {
		return fmt.Errorf("session: register: %s", status.Message)
	}
	c.Email = email
	return nil
}

// Login performs the LGIN handshake.
func (c *Client) Login(email, password string) error {
	var status frame.StatusPayload
	if err := c.roundTrip(frame.TagLogin, frame.LoginPayload{Email: email, Password: password}, &status); err != nil {
		return err
	}
	if status.Message != "" {
		return fmt.Errorf("session: login: %s", status.Message)
	}
	c.Email = email
	return nil
}

// AddContact performs the ADDC request.
func (c *Client) AddContact(name, email string) error {
	var status frame.StatusPayload
	if err := c.roundTrip(frame.TagAddContact, frame.AddContactPayload{Name: name, Email: email}, &status); err != nil {
		return err
	}
	if status.Message != "" {
		return fmt.Errorf("session: add contact: %s", status.Message)
	}
	return nil
}

// ListContacts performs the LCPN/LCRN request/reply, returning the
// mutual-online contact set.
func (c *Client) ListContacts() (map[string]string, error) {
	var reply frame.ListContactsReplyPayload
	if err := c.roundTrip(frame.TagListContacts, struct{}{}, &reply); err != nil {
		return nil, err
	}
	return reply.Contacts, nil
}

// PollTransfers performs the FTCR/FTRR poll for incoming transfer
// requests.
func (c *Client) PollTransfers() (map[string]frame.FileInfo, error) {
	var reply frame.TransferRequestsPayload
	if err := c.roundTrip(frame.TagTransferCheck, struct{}{}, &reply); err != nil {
		return nil, err
	}
	return reply.Requests, nil
}

// RequestTransfer sends FTRP and awaits the immediate STAT acknowledging
// (or rejecting) the request.
func (c *Client) RequestTransfer(recipientEmail string, fi frame.FileInfo) error {
	var status frame.StatusPayload
	if err := c.roundTrip(frame.TagTransferRequest, frame.TransferRequestPayload{
		RecipientEmail: recipientEmail,
		FileInfo:       fi,
	}, &status); err != nil {
		return err
	}
	if status.Message != "" {
		return fmt.Errorf("session: request transfer: %s", status.Message)
	}
	return nil
}

// AwaitPort blocks until the Coordinator forwards the receiver's port and
// token (pushed after the recipient accepts and reports its port via
// FTSP). An empty token means the recipient declined.
func (c *Client) AwaitPort() (port int, token string, err error) {
	f, err := c.reader.ReadFrame()
	if err != nil {
		return 0, "", fmt.Errorf("session: await FTPT: %w", err)
	}
	if f.Tag != frame.TagTransferPort {
		return 0, "", fmt.Errorf("session: expected FTPT, got %s", f.Tag)
	}
	var p frame.TransferPortPayload
	if err := f.Decode(&p); err != nil {
		return 0, "", fmt.Errorf("session: decode FTPT: %w", err)
	}
	return p.Port, p.Token, nil
}

// Accept sends FTAR for one sender and awaits the FTEA token. An empty
// senderEmail denies every pending request for this recipient instead
// (spec.md §9's deny-all quirk); in that case no FTEA is sent back and
// this method returns an empty token with no error.
func (c *Client) Accept(senderEmail string) (token string, err error) {
	f, err := frame.New(frame.TagTransferAccept, frame.TransferAcceptPayload{SenderEmail: senderEmail})
	if err != nil {
		return "", fmt.Errorf("session: build FTAR: %w", err)
	}
	if err := c.writer.WriteFrame(f); err != nil {
		return "", fmt.Errorf("session: send FTAR: %w", err)
	}
	if senderEmail == "" {
		return "", nil
	}
	reply, err := c.reader.ReadFrame()
	if err != nil {
		return "", fmt.Errorf("session: await FTEA: %w", err)
	}
	var p frame.TransferExchangePayload
	if err := reply.Decode(&p); err != nil {
		return "", fmt.Errorf("session: decode FTEA: %w", err)
	}
	return p.Token, nil
}

// SetPort reports the receiver's bound port via FTSP. There is no direct
// reply: the Coordinator forwards it to the sender's session as FTPT.
func (c *Client) SetPort(port int) error {
	f, err := frame.New(frame.TagTransferSetPort, frame.TransferSetPortPayload{Port: port})
	if err != nil {
		return fmt.Errorf("session: build FTSP: %w", err)
	}
	if err := c.writer.WriteFrame(f); err != nil {
		return fmt.Errorf("session: send FTSP: %w", err)
	}
	return nil
}
