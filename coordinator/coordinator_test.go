package coordinator

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/aokellermann/securedrop-go/account"
	"github.com/aokellermann/securedrop-go/frame"
)

// testClient wraps one end of a net.Pipe with frame read/write helpers,
// standing in for a TLS connection in tests (dispatch logic is
// TLS-agnostic).
type testClient struct {
	conn   net.Conn
	reader *frame.Reader
	writer *frame.Writer
}

func newTestClient(t *testing.T, c *Coordinator) *testClient {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	go c.handleConnection(serverConn)
	return &testClient{
		conn:   clientConn,
		reader: frame.NewReader(clientConn),
		writer: frame.NewWriter(clientConn),
	}
}

func (tc *testClient) send(t *testing.T, tag string, payload any) {
	t.Helper()
	f, err := frame.New(tag, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := tc.writer.WriteFrame(f); err != nil {
		t.Fatal(err)
	}
}

func (tc *testClient) recv(t *testing.T) frame.Frame {
	t.Helper()
	f, err := tc.reader.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	store, err := account.NewStore(filepath.Join(t.TempDir(), "server.json"))
	if err != nil {
		t.Fatal(err)
	}
	return New(store, nil)
}

// registerAndLogin sends only RGTR: a successful registration already
// authenticates the session, so no separate LGIN is needed.
func registerAndLogin(t *testing.T, c *Coordinator, name, email, password string) *testClient {
	t.Helper()
	tc := newTestClient(t, c)
	tc.send(t, frame.TagRegister, frame.RegisterPayload{Name: name, Email: email, Password: password})
	var p frame.StatusPayload
	if err := tc.recv(t).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Message != "" {
		t.Fatalf("register %s: %q", email, p.Message)
	}
	return tc
}

func TestRegisterLoginAndBadPassword(t *testing.T) {
	c := newTestCoordinator(t)
	registerAndLogin(t, c, "Alice", "alice@example.com", "password_v12")

	tc := newTestClient(t, c)
	tc.send(t, frame.TagLogin, frame.LoginPayload{Email: "alice@example.com", Password: "wrong"})
	var p frame.StatusPayload
	if err := tc.recv(t).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Message == "" {
		t.Fatal("expected login with wrong password to fail")
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	c := newTestCoordinator(t)
	tc := newTestClient(t, c)

	tc.send(t, frame.TagListContacts, struct{}{})
	f := tc.recv(t)
	if f.Tag != frame.TagStatus {
		t.Fatalf("expected STAT rejection, got %s", f.Tag)
	}
}

func TestMutualContactListing(t *testing.T) {
	c := newTestCoordinator(t)
	alice := registerAndLogin(t, c, "Alice", "alice@example.com", "password_v12")
	registerAndLogin(t, c, "Bob", "bob@example.com", "password_v34")

	alice.send(t, frame.TagAddContact, frame.AddContactPayload{Name: "Bob", Email: "bob@example.com"})
	var status frame.StatusPayload
	alice.recv(t).Decode(&status)

	alice.send(t, frame.TagListContacts, struct{}{})
	var reply frame.ListContactsReplyPayload
	alice.recv(t).Decode(&reply)
	if len(reply.Contacts) != 0 {
		t.Fatalf("expected no mutual contacts before bob adds alice back, got %v", reply.Contacts)
	}
}

func TestTransferRequestRejectsNonContact(t *testing.T) {
	c := newTestCoordinator(t)
	alice := registerAndLogin(t, c, "Alice", "alice@example.com", "password_v12")
	registerAndLogin(t, c, "Bob", "bob@example.com", "password_v34")

	alice.send(t, frame.TagTransferRequest, frame.TransferRequestPayload{
		RecipientEmail: "bob@example.com",
		FileInfo:       frame.FileInfo{Name: "f.txt", Size: 10, SHA256: "deadbeef"},
	})
	var p frame.StatusPayload
	alice.recv(t).Decode(&p)
	if p.Message == "" {
		t.Fatal("expected rejection: bob has not added alice as a contact")
	}
}

func TestAcceptDenyAllBroadcastsToEverySender(t *testing.T) {
	c := newTestCoordinator(t)
	alice := registerAndLogin(t, c, "Alice", "alice@example.com", "password_v12")
	carol := registerAndLogin(t, c, "Carol", "carol@example.com", "password_v56")
	bob := registerAndLogin(t, c, "Bob", "bob@example.com", "password_v34")

	// Make bob mutual contacts with both senders.
	bob.send(t, frame.TagAddContact, frame.AddContactPayload{Name: "Alice", Email: "alice@example.com"})
	var s frame.StatusPayload
	bob.recv(t).Decode(&s)
	bob.send(t, frame.TagAddContact, frame.AddContactPayload{Name: "Carol", Email: "carol@example.com"})
	bob.recv(t).Decode(&s)

	alice.send(t, frame.TagAddContact, frame.AddContactPayload{Name: "Bob", Email: "bob@example.com"})
	alice.recv(t).Decode(&s)
	carol.send(t, frame.TagAddContact, frame.AddContactPayload{Name: "Bob", Email: "bob@example.com"})
	carol.recv(t).Decode(&s)

	fi := frame.FileInfo{Name: "f.txt", Size: 1, SHA256: "ab"}
	alice.send(t, frame.TagTransferRequest, frame.TransferRequestPayload{RecipientEmail: "bob@example.com", FileInfo: fi})
	alice.recv(t).Decode(&s)
	carol.send(t, frame.TagTransferRequest, frame.TransferRequestPayload{RecipientEmail: "bob@example.com", FileInfo: fi})
	carol.recv(t).Decode(&s)

	bob.send(t, frame.TagTransferAccept, frame.TransferAcceptPayload{SenderEmail: ""})

	// Each sender is read on its own goroutine: the coordinator notifies
	// pending senders in map order, and a net.Pipe write blocks until the
	// other end reads it.
	type result struct {
		f   frame.Frame
		err error
	}
	senders := []*testClient{alice, carol}
	results := make([]chan result, len(senders))
	for i, sender := range senders {
		sender.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		results[i] = make(chan result, 1)
		go func(tc *testClient, out chan<- result) {
			f, err := tc.reader.ReadFrame()
			out <- result{f: f, err: err}
		}(sender, results[i])
	}

	for _, ch := range results {
		r := <-ch
		if r.err != nil {
			t.Fatal(r.err)
		}
		f := r.f
		if f.Tag != frame.TagTransferPort {
			t.Fatalf("expected FTPT on deny-all, got %s", f.Tag)
		}
		var port frame.TransferPortPayload
		f.Decode(&port)
		if port.Token != "" || port.Port != 0 {
			t.Fatalf("expected denial payload, got %+v", port)
		}
	}
}
