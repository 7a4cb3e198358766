package session

import (
	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
)

// Peer is the transport side of one connection. Framing and encoding belong
// to the implementation; the server only sees decoded messages.
type Peer interface {
	// Send queues resp for delivery without blocking. Delivery is best effort.
	Send(resp pkgmodels.ApiResponse) error
	// Receive blocks until the next message arrives. Any error means the
	// peer is gone.
	Receive() (models.Inbound, error)
	Close() error
	RemoteAddr() string
}

// Settings is the read-only configuration consulted by the core.
type Settings interface {
	MaxPlayers() int
	MaxLobbies() int
	Debug() bool
	Banned(id string) bool
	Whitelisted(id string) bool
}

// PolicyEditor is implemented by settings that operators can change at
// runtime.
type PolicyEditor interface {
	Ban(id string)
	Unban(id string)
	Whitelist(id string)
}

// Recorder receives run events for archiving. Implementations must not block.
type Recorder interface {
	RecordAction(action models.GameAction)
	SaveRun(run models.Run)
}

type nopRecorder struct{}

func (nopRecorder) RecordAction(models.GameAction) {}

func (nopRecorder) SaveRun(models.Run) {}
