package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

// ConnID is the stable handle of a connection in the server's table.
type ConnID uint64

// Connection is one accepted peer. Its identity and lobby fields are only
// read or written with the server lock held.
type Connection struct {
	id       ConnID
	peer     Peer
	identity *models.Identity
	lobby    int
	closed   bool
}

func (c *Connection) ID() ConnID { return c.id }

// Identity returns the authenticated identity, if any.
func (c *Connection) Identity() (models.Identity, bool) {
	if c.identity == nil {
		return models.Identity{}, false
	}
	return *c.identity, true
}

// IdentityID returns the identity id or "" before authentication.
func (c *Connection) IdentityID() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.ID
}

// Authenticate attaches id to the connection. An identity can only be set once.
func (c *Connection) Authenticate(id models.Identity) bool {
	if c.identity != nil {
		return false
	}
	c.identity = &id
	return true
}

// Lobby returns the number of the lobby the connection is in, or 0.
func (c *Connection) Lobby() int { return c.lobby }

func (c *Connection) RemoteAddr() string { return c.peer.RemoteAddr() }

// Send delivers resp to this connection only. Errors are dropped: a peer that
// cannot keep up closes itself and its receive loop ends the session.
func (c *Connection) Send(resp pkgmodels.ApiResponse) {
	if c.closed {
		return
	}
	_ = c.peer.Send(resp)
}

// Serve runs the receive and dispatch loop for peer until it disconnects or
// sends something that gets it dropped. It blocks for the lifetime of the
// connection; the transport calls it from the connection's own goroutine.
func (s *Server) Serve(peer Peer) {
	c := s.accept(peer)
	for {
		msg, err := peer.Receive()
		if err != nil {
			var perr responses.ProtocolError
			if errors.As(err, &perr) {
				s.log.Warn("dropping peer", append(connFields(c), zap.Error(err))...)
			} else {
				s.log.Debug("peer closed", connFields(c)...)
			}
			s.Disconnect(c)
			return
		}
		if !s.dispatch(c, msg) {
			s.Disconnect(c)
			return
		}
	}
}

// dispatch routes msg through the router of whichever scope c is in. It
// reports whether the connection should stay open.
func (s *Server) dispatch(c *Connection, msg models.Inbound) (keep bool) {
	s.withLock(func() {
		if c.closed {
			return
		}
		if l := s.lobbyLocked(c.lobby); l != nil {
			keep = l.router.Process(l, c, msg)
			return
		}
		keep = s.router.Process(s, c, msg)
	})
	return keep
}
