package coordinator

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/aokellermann/securedrop-go/frame"
)

// dispatch routes one decoded frame to its handler, enforcing the
// CONNECTED/AUTHENTICATED state machine from spec.md §4.3.
func (c *Coordinator) dispatch(sess *session, f frame.Frame) error {
	if sess.state != stateAuthenticated && f.Tag != frame.TagRegister && f.Tag != frame.TagLogin {
		return sess.send(frame.TagStatus, frame.StatusPayload{Message: "Not authenticated."})
	}

	switch f.Tag {
	case frame.TagRegister:
		return c.handleRegister(sess, f)
	case frame.TagLogin:
		return c.handleLogin(sess, f)
	case frame.TagAddContact:
		return c.handleAddContact(sess, f)
	case frame.TagListContacts:
		return c.handleListContacts(sess)
	case frame.TagTransferRequest:
		return c.handleTransferRequest(sess, f)
	case frame.TagTransferCheck:
		return c.handleTransferCheck(sess)
	case frame.TagTransferAccept:
		return c.handleTransferAccept(sess, f)
	case frame.TagTransferSetPort:
		return c.handleTransferSetPort(sess, f)
	default:
		c.Logger.Warn("unknown tag dropped", "session", sess.id, "tag", f.Tag)
		return nil
	}
}

func (c *Coordinator) handleRegister(sess *session, f frame.Frame) error {
	var p frame.RegisterPayload
	if err := f.Decode(&p); err != nil {
		return fmt.Errorf("coordinator: decode RGTR: %w", err)
	}

	msg := c.Store.Register(p.Name, p.Email, p.Password)
	if msg == "" {
		c.bind(sess, p.Email)
	}
	return sess.send(frame.TagStatus, frame.StatusPayload{Message: msg})
}

func (c *Coordinator) handleLogin(sess *session, f frame.Frame) error {
	var p frame.LoginPayload
	if err := f.Decode(&p); err != nil {
		return fmt.Errorf("coordinator: decode LGIN: %w", err)
	}

	msg := c.Store.Authenticate(p.Email, p.Password)
	if msg == "" {
		c.bind(sess, p.Email)
	}
	return sess.send(frame.TagStatus, frame.StatusPayload{Message: msg})
}

// bind records the session<->email binding after a successful
// register/login. Store.Register/Authenticate have already released the
// account-store lock, so only the session-map lock is held here.
func (c *Coordinator) bind(sess *session, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess.state = stateAuthenticated
	sess.email = email
	c.emailToSession[email] = sess.id
}

func (c *Coordinator) handleAddContact(sess *session, f frame.Frame) error {
	var p frame.AddContactPayload
	if err := f.Decode(&p); err != nil {
		return fmt.Errorf("coordinator: decode ADDC: %w", err)
	}
	msg := c.Store.AddContact(sess.email, p.Name, p.Email)
	return sess.send(frame.TagStatus, frame.StatusPayload{Message: msg})
}

// handleListContacts computes the mutual-online set: each contact of
// sess.email that is both currently online and has added sess.email back
// (spec.md §4.3).
func (c *Coordinator) handleListContacts(sess *session) error {
	contacts := c.Store.GetContacts(sess.email)

	mutual := make(map[string]string)
	for email, name := range contacts {
		c.mu.Lock()
		_, online := c.emailToSession[email]
		c.mu.Unlock()
		if !online {
			continue
		}
		if c.Store.ContactsContains(email, sess.email) {
			mutual[email] = name
		}
	}
	return sess.send(frame.TagListContactsReply, frame.ListContactsReplyPayload{Contacts: mutual})
}

// handleTransferRequest enqueues a pending transfer request, rejecting
// offline recipients, recipients who have not added the sender as a
// contact, and pairs whose session remote IPs differ (spec.md §4.3).
func (c *Coordinator) handleTransferRequest(sess *session, f frame.Frame) error {
	var p frame.TransferRequestPayload
	if err := f.Decode(&p); err != nil {
		return fmt.Errorf("coordinator: decode FTRP: %w", err)
	}

	c.mu.Lock()
	recipientID, online := c.emailToSession[p.RecipientEmail]
	var recipientAddr string
	if online {
		recipientAddr = c.sessionToRemoteAddr[recipientID]
	}
	c.mu.Unlock()

	if !online {
		return sess.send(frame.TagStatus, frame.StatusPayload{Message: "Recipient is not online."})
	}
	if !c.Store.ContactsContains(p.RecipientEmail, sess.email) {
		return sess.send(frame.TagStatus, frame.StatusPayload{
			Message: fmt.Sprintf("User [%s] has not added you as a contact", sess.email),
		})
	}
	if recipientAddr != sess.remoteAddr {
		return sess.send(frame.TagStatus, frame.StatusPayload{Message: "Recipient is not on the same network."})
	}

	c.mu.Lock()
	if c.transferRequests[p.RecipientEmail] == nil {
		c.transferRequests[p.RecipientEmail] = make(map[string]frame.FileInfo)
	}
	c.transferRequests[p.RecipientEmail][sess.email] = p.FileInfo
	c.mu.Unlock()

	return sess.send(frame.TagStatus, frame.StatusPayload{Message: ""})
}

func (c *Coordinator) handleTransferCheck(sess *session) error {
	c.mu.Lock()
	pending := c.transferRequests[sess.email]
	out := make(map[string]frame.FileInfo, len(pending))
	for sender, fi := range pending {
		out[sender] = fi
	}
	c.mu.Unlock()

	return sess.send(frame.TagTransferRequests, frame.TransferRequestsPayload{Requests: out})
}

// handleTransferAccept implements accept/deny, including the deny-all
// broadcast quirk documented as spec.md §9's known behavior: an empty
// SenderEmail notifies every pending sender for this recipient, not only
// the one the caller had in mind.
func (c *Coordinator) handleTransferAccept(sess *session, f frame.Frame) error {
	var p frame.TransferAcceptPayload
	if err := f.Decode(&p); err != nil {
		return fmt.Errorf("coordinator: decode FTAR: %w", err)
	}

	if p.SenderEmail == "" {
		c.mu.Lock()
		pending := c.transferRequests[sess.email]
		delete(c.transferRequests, sess.email)
		senderIDs := make([]uint64, 0, len(pending))
		for senderEmail := range pending {
			if id, ok := c.emailToSession[senderEmail]; ok {
				senderIDs = append(senderIDs, id)
			}
		}
		senderSessions := make([]*session, 0, len(senderIDs))
		for _, id := range senderIDs {
			if s, ok := c.sessions[id]; ok {
				senderSessions = append(senderSessions, s)
			}
		}
		c.mu.Unlock()

		for _, s := range senderSessions {
			_ = s.send(frame.TagTransferPort, frame.TransferPortPayload{Port: 0, Token: ""})
		}
		return nil
	}

	c.mu.Lock()
	pending := c.transferRequests[sess.email]
	if _, ok := pending[p.SenderEmail]; !ok {
		c.mu.Unlock()
		// No pending request from that sender. The recipient is blocked
		// awaiting FTEA, so answer with an empty token.
		return sess.send(frame.TagTransferExchange, frame.TransferExchangePayload{Token: ""})
	}
	delete(pending, p.SenderEmail)

	senderID, senderOnline := c.emailToSession[p.SenderEmail]
	if !senderOnline {
		c.mu.Unlock()
		// The sender vanished between request and accept. The recipient is
		// already blocked awaiting FTEA (session/client.go's Accept), so send
		// an empty token rather than leaving that read to hang forever.
		return sess.send(frame.TagTransferExchange, frame.TransferExchangePayload{Token: ""})
	}

	token, err := newToken()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("coordinator: generate token: %w", err)
	}
	c.rendezvous[sess.id] = &rendezvousRecord{token: token, senderID: senderID, senderEmail: p.SenderEmail}
	c.mu.Unlock()

	return sess.send(frame.TagTransferExchange, frame.TransferExchangePayload{Token: token})
}

// handleTransferSetPort forwards the recipient-chosen port and the
// rendezvous token to the waiting sender (spec.md §4.3).
func (c *Coordinator) handleTransferSetPort(sess *session, f frame.Frame) error {
	var p frame.TransferSetPortPayload
	if err := f.Decode(&p); err != nil {
		return fmt.Errorf("coordinator: decode FTSP: %w", err)
	}

	c.mu.Lock()
	rec, ok := c.rendezvous[sess.id]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.rendezvous, sess.id)
	senderSess, senderOnline := c.sessions[rec.senderID]
	c.mu.Unlock()

	if !senderOnline {
		return nil
	}
	return senderSess.send(frame.TagTransferPort, frame.TransferPortPayload{Port: p.Port, Token: rec.token})
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
