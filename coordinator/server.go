// Package coordinator implements the central SecureDrop server: TLS
// session handling, the mutual-contact graph, the transfer-request queue,
// and token+port rendezvous (spec.md §4.3). Its accept-loop-plus-
// goroutine-per-connection shape is grounded on socks.Server; mutexes
// replace the reference's single-threaded event loop per spec.md §9's
// explicitly permitted alternative concurrency model.
package coordinator

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/aokellermann/securedrop-go/account"
	"github.com/aokellermann/securedrop-go/frame"
)

// rendezvousRecord binds a sender session to an accepted recipient
// session and the one-time token the sender must present to the
// receiver (spec.md §3).
type rendezvousRecord struct {
	token        string
	senderID     uint64
	senderEmail  string
}

// Coordinator owns the account store plus the in-memory session,
// transfer-request, and rendezvous state described in spec.md §4.3.
//
// Lock ordering: any handler that needs both the account store and the
// session-map mutex must call into Store first and let it release its
// own lock before acquiring mu — never the reverse — matching spec.md
// §4.3's "account-store-then-session-map" rule.
type Coordinator struct {
	Store  *account.Store
	Logger *slog.Logger

	listener net.Listener

	mu                  sync.Mutex
	sessions            map[uint64]*session
	emailToSession       map[string]uint64
	sessionToRemoteAddr map[uint64]string
	transferRequests    map[string]map[string]frame.FileInfo
	rendezvous          map[uint64]*rendezvousRecord

	nextID atomic.Uint64
}

// New creates a Coordinator backed by store. If logger is nil,
// slog.Default() is used.
func New(store *account.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		Store:               store,
		Logger:              logger,
		sessions:            make(map[uint64]*session),
		emailToSession:       make(map[string]uint64),
		sessionToRemoteAddr: make(map[uint64]string),
		transferRequests:    make(map[string]map[string]frame.FileInfo),
		rendezvous:          make(map[uint64]*rendezvousRecord),
	}
}

// ListenAndServe binds addr with the given TLS config and serves
// connections until ctx is canceled or an unrecoverable accept error
// occurs.
func (c *Coordinator) ListenAndServe(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	ln, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("coordinator: listen %s: %w", addr, err)
	}
	c.listener = ln
	c.Logger.Info("coordinator listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("coordinator: accept: %w", err)
		}
		go c.handleConnection(conn)
	}
}

func (c *Coordinator) handleConnection(conn net.Conn) {
	id := c.nextID.Add(1)
	remote := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}

	sess := &session{
		id:         id,
		conn:       conn,
		reader:     frame.NewReader(conn),
		writer:     frame.NewWriter(conn),
		remoteAddr: host,
		state:      stateConnected,
	}

	c.mu.Lock()
	c.sessions[id] = sess
	c.sessionToRemoteAddr[id] = host
	c.mu.Unlock()

	c.Logger.Debug("session connected", "session", id, "remote", host)

	defer c.teardown(sess)
	defer conn.Close()

	for {
		f, err := sess.reader.ReadFrame()
		if err != nil {
			c.Logger.Debug("session read ended", "session", id, "err", err)
			return
		}
		if err := c.dispatch(sess, f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.Logger.Warn("malformed payload dropped", "session", id, "tag", f.Tag, "err", err)
				continue
			}
			c.Logger.Warn("session dispatch error", "session", id, "tag", f.Tag, "err", err)
			return
		}
	}
}

// teardown drops every trace of sess from Coordinator state, per
// spec.md §4.3's session-teardown rule.
func (c *Coordinator) teardown(sess *session) {
	if sess.email != "" {
		c.Store.Logout(sess.email)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, sess.id)
	delete(c.sessionToRemoteAddr, sess.id)
	if sess.email != "" {
		if cur, ok := c.emailToSession[sess.email]; ok && cur == sess.id {
			delete(c.emailToSession, sess.email)
		}
		delete(c.transferRequests, sess.email)
		for _, pending := range c.transferRequests {
			delete(pending, sess.email)
		}
	}
	for recipientID, rec := range c.rendezvous {
		if recipientID == sess.id || rec.senderID == sess.id {
			delete(c.rendezvous, recipientID)
		}
	}
	c.Logger.Debug("session closed", "session", sess.id)
}
