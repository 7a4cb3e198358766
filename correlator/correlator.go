// Package correlator stores in-flight multi-party exchanges between lobby
// members. A handler creates a Request, tags the messages it fans out with the
// request id, and looks the request up again when replies arrive.
//
// Correlator does no locking of its own. The session server owns the only
// instance and calls it with the server lock held, the sweep included.
package correlator

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type Request struct {
	ID        string
	Creator   string
	Lobby     int
	Payload   any
	CreatedAt time.Time
}

type Correlator struct {
	clock    clockwork.Clock
	lifetime time.Duration
	requests map[string]*Request
}

func New(clock clockwork.Clock, lifetime time.Duration) *Correlator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Correlator{
		clock:    clock,
		lifetime: lifetime,
		requests: make(map[string]*Request),
	}
}

// Create stores a fresh request owned by creator.
func (c *Correlator) Create(creator string, lobby int, payload any) *Request {
	req := &Request{
		ID:        uuid.NewString(),
		Creator:   creator,
		Lobby:     lobby,
		Payload:   payload,
		CreatedAt: c.clock.Now(),
	}
	c.requests[req.ID] = req
	return req
}

// Get returns the request or false when it was completed or expired.
func (c *Correlator) Get(id string) (*Request, bool) {
	req, ok := c.requests[id]
	return req, ok
}

// Complete drops the request. Completing an unknown id is a no-op.
func (c *Correlator) Complete(id string) {
	delete(c.requests, id)
}

// CompleteLobby drops every request that belongs to lobby.
func (c *Correlator) CompleteLobby(lobby int) int {
	n := 0
	for id, req := range c.requests {
		if req.Lobby == lobby {
			delete(c.requests, id)
			n++
		}
	}
	return n
}

// Sweep discards every request older than the configured lifetime and
// returns how many were dropped.
func (c *Correlator) Sweep() int {
	cutoff := c.clock.Now().Add(-c.lifetime)
	n := 0
	for id, req := range c.requests {
		if req.CreatedAt.Before(cutoff) {
			delete(c.requests, id)
			n++
		}
	}
	return n
}

func (c *Correlator) Len() int { return len(c.requests) }

// ByLobby returns the pending requests of lobby, oldest first.
func (c *Correlator) ByLobby(lobby int) []*Request {
	var out []*Request
	for _, req := range c.requests {
		if req.Lobby == lobby {
			out = append(out, req)
		}
	}
	slices.SortFunc(out, func(a, b *Request) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}
