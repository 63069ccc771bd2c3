package coordinator

import (
	"net"
	"sync"

	"github.com/aokellermann/securedrop-go/frame"
)

// state is a session's position in the spec.md §4.3 state machine:
// connected -> authenticated -> (terminal) closed.
type state int

const (
	stateConnected state = iota
	stateAuthenticated
	stateClosed
)

// session is one live TLS connection to the Coordinator. Exactly one
// goroutine (handleConnection) reads the stream and drives state
// transitions; everything it touches outside of itself goes through
// Coordinator's locked maps. Other sessions' handlers also write to this
// stream (deny-all and port forwarding send FTPT to a sender), so send
// serializes writes with wmu.
type session struct {
	id         uint64
	conn       net.Conn
	reader     *frame.Reader
	writer     *frame.Writer
	remoteAddr string

	wmu sync.Mutex

	state state
	email string // set once authenticated; "" in stateConnected
}

func (s *session) send(tag string, payload any) error {
	f, err := frame.New(tag, payload)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.writer.WriteFrame(f)
}
