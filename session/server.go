package session

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/correlator"
	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

type Options struct {
	Settings Settings
	Logger   *zap.Logger
	Recorder Recorder
	Clock    clockwork.Clock
	// Rand seeds game randomness. Nil uses a random seed.
	Rand *rand.Rand

	RequestLifetime time.Duration
	SweepInterval   time.Duration

	// ServerCommands and LobbyCommands register the handlers of each scope.
	// LobbyCommands runs once per lobby in the pool.
	ServerCommands func(r *Router[*Server])
	LobbyCommands  func(r *Router[*Lobby])
}

// Server owns every connection and lobby. All mutable state below mu is
// guarded by it, and every inbound message is processed with it held.
type Server struct {
	settings Settings
	log      *zap.Logger
	recorder Recorder
	clock    clockwork.Clock
	router   *Router[*Server]

	sweepInterval time.Duration
	scheduler     gocron.Scheduler

	mu       sync.Mutex
	conns    map[ConnID]*Connection
	nextConn ConnID
	lobbies  []*Lobby
	requests *correlator.Correlator
}

func NewServer(opts Options) (*Server, error) {
	if opts.Settings == nil {
		return nil, fmt.Errorf("session: settings are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.RequestLifetime <= 0 {
		opts.RequestLifetime = 30 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Second
	}

	s := &Server{
		settings:      opts.Settings,
		log:           opts.Logger,
		recorder:      opts.Recorder,
		clock:         opts.Clock,
		sweepInterval: opts.SweepInterval,
		conns:         make(map[ConnID]*Connection),
		requests:      correlator.New(opts.Clock, opts.RequestLifetime),
	}

	s.router = NewRouter[*Server]("server", opts.Logger)
	if opts.ServerCommands != nil {
		opts.ServerCommands(s.router)
	}

	for n := 1; n <= opts.Settings.MaxLobbies(); n++ {
		seed := opts.Rand.Uint64()
		l := newLobby(s, n, rand.New(rand.NewPCG(seed, uint64(n))))
		if opts.LobbyCommands != nil {
			opts.LobbyCommands(l.router)
		}
		s.lobbies = append(s.lobbies, l)
	}
	return s, nil
}

// Start schedules the persistent request sweep.
func (s *Server) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.sweepInterval),
		gocron.NewTask(func() { s.SweepRequests() }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule request sweep: %w", err)
	}
	sched.Start()
	s.scheduler = sched
	return nil
}

// Shutdown stops the sweep and disconnects every connection.
func (s *Server) Shutdown() {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			s.log.Warn("scheduler shutdown", zap.Error(err))
		}
	}
	s.withLock(func() {
		for _, c := range s.conns {
			s.disconnectLocked(c)
		}
	})
}

// withLock runs fn with the server lock held. The lock is released even if
// fn panics.
func (s *Server) withLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// SweepRequests discards expired persistent requests and returns how many
// were dropped. The scheduled sweep calls it every SweepInterval.
func (s *Server) SweepRequests() int {
	var n int
	s.withLock(func() { n = s.requests.Sweep() })
	if n > 0 {
		s.log.Debug("expired persistent requests", zap.Int("count", n))
	}
	return n
}

func (s *Server) accept(peer Peer) *Connection {
	var c *Connection
	s.withLock(func() {
		s.nextConn++
		c = &Connection{id: s.nextConn, peer: peer}
		s.conns[c.id] = c
	})
	s.log.Info("connection accepted", zap.Uint64("conn", uint64(c.id)), zap.String("remote", peer.RemoteAddr()))
	return c
}

// Disconnect removes c from its lobby and from the server and closes its peer.
// It is safe to call more than once.
func (s *Server) Disconnect(c *Connection) {
	s.withLock(func() { s.disconnectLocked(c) })
}

func (s *Server) disconnectLocked(c *Connection) {
	if c.closed {
		return
	}
	if l := s.lobbyLocked(c.lobby); l != nil {
		l.Remove(c)
	}
	c.closed = true
	delete(s.conns, c.id)
	if err := c.peer.Close(); err != nil {
		s.log.Debug("close peer", append(connFields(c), zap.Error(err))...)
	}
	s.log.Info("connection closed", connFields(c)...)
}

func (s *Server) lobbyLocked(n int) *Lobby {
	if n < 1 || n > len(s.lobbies) {
		return nil
	}
	return s.lobbies[n-1]
}

// Settings returns the configuration provider.
func (s *Server) Settings() Settings { return s.settings }

func (s *Server) Logger() *zap.Logger { return s.log }

// Requests is the correlator shared by every lobby. Callers must hold the
// server lock, which is always the case inside a command handler.
func (s *Server) Requests() *correlator.Correlator { return s.requests }

// Lobby returns lobby n. Callers must hold the server lock.
func (s *Server) Lobby(n int) (*Lobby, bool) {
	l := s.lobbyLocked(n)
	return l, l != nil
}

// IdentityConnected reports whether another live connection already carries
// the identity id. Callers must hold the server lock.
func (s *Server) IdentityConnected(id string, except *Connection) bool {
	for _, c := range s.conns {
		if c != except && c.IdentityID() == id {
			return true
		}
	}
	return false
}

// PickLobby resolves the lobby a join request is aimed at. Number 0 means
// the first lobby that can take c; with a single lobby that is the default
// lobby. Callers must hold the server lock.
func (s *Server) PickLobby(number int, c *Connection) (*Lobby, error) {
	if number > 0 {
		l := s.lobbyLocked(number)
		if l == nil {
			return nil, responses.NotFoundError{Msg: fmt.Sprintf("lobby %d does not exist", number)}
		}
		if err := l.joinBlocker(c); err != nil {
			return nil, err
		}
		return l, nil
	}
	var firstErr error
	for _, l := range s.lobbies {
		err := l.joinBlocker(c)
		if err == nil {
			return l, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if len(s.lobbies) == 1 && firstErr != nil {
		return nil, firstErr
	}
	return nil, responses.IllegalStateError{Msg: "no lobby can be joined right now"}
}

// LobbiesLocked lists every lobby. Callers must hold the server lock.
func (s *Server) LobbiesLocked() []models.LobbyInfo {
	out := make([]models.LobbyInfo, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, l.Info())
	}
	return out
}

// Operator actions. These take the lock themselves.

// Lobbies lists every lobby.
func (s *Server) Lobbies() []models.LobbyInfo {
	var out []models.LobbyInfo
	s.withLock(func() { out = s.LobbiesLocked() })
	return out
}

// Kick disconnects every connection authenticated as id and reports how many
// were closed.
func (s *Server) Kick(id string) int {
	n := 0
	s.withLock(func() {
		for _, c := range s.conns {
			if c.IdentityID() == id {
				c.Send(pkgmodels.ErrorResponse("kick", "removed by operator"))
				s.disconnectLocked(c)
				n++
			}
		}
	})
	if n > 0 {
		s.log.Info("kicked player", zap.String("player", id), zap.Int("connections", n))
	}
	return n
}

// Ban bans id and disconnects it. It fails when the settings are read-only.
func (s *Server) Ban(id string) (int, error) {
	editor, ok := s.settings.(PolicyEditor)
	if !ok {
		return 0, fmt.Errorf("session: settings cannot be edited")
	}
	editor.Ban(id)
	s.log.Info("banned player", zap.String("player", id))
	return s.Kick(id), nil
}

func (s *Server) Unban(id string) error {
	editor, ok := s.settings.(PolicyEditor)
	if !ok {
		return fmt.Errorf("session: settings cannot be edited")
	}
	editor.Unban(id)
	s.log.Info("unbanned player", zap.String("player", id))
	return nil
}

func (s *Server) Whitelist(id string) error {
	editor, ok := s.settings.(PolicyEditor)
	if !ok {
		return fmt.Errorf("session: settings cannot be edited")
	}
	editor.Whitelist(id)
	s.log.Info("whitelisted player", zap.String("player", id))
	return nil
}

// StopLobby ends the run of lobby n, if any.
func (s *Server) StopLobby(n int) bool {
	stopped := false
	s.withLock(func() {
		if l := s.lobbyLocked(n); l != nil {
			stopped = l.StopRun()
		}
	})
	return stopped
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	var n int
	s.withLock(func() { n = len(s.conns) })
	return n
}
