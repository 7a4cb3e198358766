package session

import (
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mapleleafu/cardarena/arena-backend/game"
	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

type fakePeer struct {
	in     chan models.Inbound
	out    chan pkgmodels.ApiResponse
	closed chan struct{}
	once   sync.Once
}

func newFakePeer() *fakePeer {
	return &fakePeer{
		in:     make(chan models.Inbound, 16),
		out:    make(chan pkgmodels.ApiResponse, 128),
		closed: make(chan struct{}),
	}
}

func (p *fakePeer) Send(resp pkgmodels.ApiResponse) error {
	select {
	case <-p.closed:
		return errors.New("closed")
	default:
	}
	select {
	case p.out <- resp:
		return nil
	default:
		return errors.New("full")
	}
}

func (p *fakePeer) Receive() (models.Inbound, error) {
	select {
	case m := <-p.in:
		return m, nil
	case <-p.closed:
		return models.Inbound{}, io.EOF
	}
}

func (p *fakePeer) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePeer) RemoteAddr() string { return "fake" }

func (p *fakePeer) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// drain returns everything sent to the peer so far.
func (p *fakePeer) drain() []pkgmodels.ApiResponse {
	var out []pkgmodels.ApiResponse
	for {
		select {
		case r := <-p.out:
			out = append(out, r)
		default:
			return out
		}
	}
}

type fakeSettings struct {
	maxPlayers int
	maxLobbies int
	debug      bool
}

func (f fakeSettings) MaxPlayers() int { return f.maxPlayers }
func (f fakeSettings) MaxLobbies() int { return f.maxLobbies }
func (f fakeSettings) Debug() bool { return f.debug }
func (f fakeSettings) Banned(string) bool { return false }
func (f fakeSettings) Whitelisted(string) bool { return true }

func testServerCommands(r *Router[*Server]) {
	r.Handle("auth", func(s *Server, c *Connection, msg models.Inbound) (any, error) {
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.Raw, &req); err != nil || req.ID == "" {
			return nil, responses.BadRequestError{Msg: "id is required"}
		}
		if s.IdentityConnected(req.ID, c) {
			return nil, responses.UnauthorizedError{Msg: "identity already connected", Drop: true}
		}
		c.Authenticate(models.Identity{ID: req.ID})
		return map[string]string{"id": req.ID}, nil
	})
	r.Handle("join", func(s *Server, c *Connection, msg models.Inbound) (any, error) {
		var req struct {
			Lobby int `json:"lobby"`
		}
		_ = json.Unmarshal(msg.Raw, &req)
		l, err := s.PickLobby(req.Lobby, c)
		if err != nil {
			return nil, err
		}
		if err := l.Add(c); err != nil {
			return nil, err
		}
		return map[string]int{"lobby": l.Number()}, nil
	})
	r.Handle("bad", func(*Server, *Connection, models.Inbound) (any, error) {
		return nil, responses.BadRequestError{Msg: "bad input"}
	})
	r.Handle("fatal", func(*Server, *Connection, models.Inbound) (any, error) {
		return nil, responses.ProtocolError{Msg: "nonsense"}
	})
	r.Handle("untyped", func(*Server, *Connection, models.Inbound) (any, error) {
		return nil, errors.New("disk on fire")
	})
	r.Handle("boom", func(*Server, *Connection, models.Inbound) (any, error) {
		panic("boom")
	})
}

func testLobbyCommands(r *Router[*Lobby]) {
	r.Handle("leave", func(l *Lobby, c *Connection, _ models.Inbound) (any, error) {
		l.Remove(c)
		return map[string]bool{"left": true}, nil
	})
}

func newTestServer(t *testing.T, settings fakeSettings) (*Server, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s, err := NewServer(Options{
		Settings:        settings,
		Clock:           clock,
		Rand:            rand.New(rand.NewPCG(1, 2)),
		RequestLifetime: 30 * time.Second,
		ServerCommands:  testServerCommands,
		LobbyCommands:   testLobbyCommands,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s, clock
}

func inbound(t *testing.T, cmd string, fields map[string]interface{}) models.Inbound {
	t.Helper()
	msg, err := models.NewInbound(cmd, fields)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

// connect accepts a fake peer and authenticates it as id.
func connect(t *testing.T, s *Server, id string) (*Connection, *fakePeer) {
	t.Helper()
	p := newFakePeer()
	c := s.accept(p)
	if !s.dispatch(c, inbound(t, "auth", map[string]interface{}{"id": id})) {
		t.Fatalf("auth %s dropped", id)
	}
	p.drain()
	return c, p
}

func join(t *testing.T, s *Server, c *Connection, lobby int) bool {
	t.Helper()
	return s.dispatch(c, inbound(t, "join", map[string]interface{}{"lobby": lobby}))
}

func TestRouterDropsUnroutableMessages(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	cases := map[string]string{
		"empty object":  `{}`,
		"numeric cmd":   `{"cmd":5}`,
		"empty cmd":     `{"cmd":""}`,
		"unknown cmd":   `{"cmd":"fly"}`,
		"not an object": `[1,2,3]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			p := newFakePeer()
			c := s.accept(p)
			if s.dispatch(c, models.Inbound{Raw: json.RawMessage(raw)}) {
				t.Fatalf("expected %s to be dropped", raw)
			}
			if got := p.drain(); len(got) != 0 {
				t.Fatalf("expected no reply, got %+v", got)
			}
		})
	}
}

func TestRouterRecoverableErrorKeepsConnection(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	p := newFakePeer()
	c := s.accept(p)

	if !s.dispatch(c, inbound(t, "bad", nil)) {
		t.Fatal("recoverable error dropped the connection")
	}
	got := p.drain()
	if len(got) != 1 {
		t.Fatalf("expected one reply, got %d", len(got))
	}
	if got[0].Success || got[0].Cmd != "bad" || got[0].Error != "bad input" {
		t.Fatalf("unexpected reply %+v", got[0])
	}
}

func TestRouterFatalFailuresDropWithoutReply(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	for _, cmd := range []string{"fatal", "untyped", "boom"} {
		t.Run(cmd, func(t *testing.T) {
			p := newFakePeer()
			c := s.accept(p)
			if s.dispatch(c, inbound(t, cmd, nil)) {
				t.Fatalf("%s should drop the connection", cmd)
			}
			if got := p.drain(); len(got) != 0 {
				t.Fatalf("expected no reply, got %+v", got)
			}
			// The lock must have been released even after a panic.
			done := make(chan struct{})
			go func() {
				s.ConnectionCount()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("server lock still held")
			}
		})
	}
}

func TestRouterDuplicateHandlePanics(t *testing.T) {
	r := NewRouter[*Server]("server", nil)
	h := func(*Server, *Connection, models.Inbound) (any, error) { return nil, nil }
	r.Handle("ping", h)
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	r.Handle("ping", h)
}

func TestRouterCommandsSorted(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	got := s.router.Commands()
	want := []string{"auth", "bad", "boom", "fatal", "join", "untyped"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLobbyAddRequiresIdentity(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	c := s.accept(newFakePeer())

	var err error
	s.withLock(func() { err = s.lobbies[0].Add(c) })
	var apiErr responses.APIError
	if !errors.As(err, &apiErr) || apiErr.Fatal() {
		t.Fatalf("expected a recoverable error, got %v", err)
	}
	if s.lobbies[0].Size() != 0 {
		t.Fatal("unauthenticated connection was added")
	}
}

func TestLobbyNeverExceedsMaxPlayers(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 2, maxLobbies: 1})
	for i, id := range []string{"a", "b", "c"} {
		c, p := connect(t, s, id)
		if !join(t, s, c, 0) {
			t.Fatalf("join %s dropped", id)
		}
		replies := p.drain()
		last := replies[len(replies)-1]
		if i < 2 && !last.Success {
			t.Fatalf("join %s failed: %s", id, last.Error)
		}
		if i == 2 && (last.Success || last.Error != "cannot join: lobby is full") {
			t.Fatalf("expected lobby full error, got %+v", last)
		}
	}
	if n := s.lobbies[0].Size(); n != 2 {
		t.Fatalf("lobby size %d, want 2", n)
	}
}

func TestConcurrentJoinForLastSlot(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 2, maxLobbies: 1})
	first, _ := connect(t, s, "host")
	if !join(t, s, first, 0) {
		t.Fatal("host join dropped")
	}

	a, pa := connect(t, s, "a")
	b, pb := connect(t, s, "b")

	var wg sync.WaitGroup
	for _, c := range []*Connection{a, b} {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			if !join(t, s, c, 0) {
				t.Errorf("join dropped connection %d", c.ID())
			}
		}(c)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, p := range []*fakePeer{pa, pb} {
		for _, r := range p.drain() {
			if r.Cmd != "join" {
				continue
			}
			if r.Success {
				if data, ok := r.Data.(map[string]int); ok && data["lobby"] == 1 {
					succeeded++
				}
			} else {
				failed++
			}
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 1 and 1", succeeded, failed)
	}
	if n := s.lobbies[0].Size(); n != 2 {
		t.Fatalf("lobby size %d, want 2", n)
	}
}

func TestConnectionIsInAtMostOneLobby(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 2})
	c, _ := connect(t, s, "a")
	if !join(t, s, c, 1) {
		t.Fatal("join dropped")
	}

	var err error
	s.withLock(func() { err = s.lobbies[1].Add(c) })
	if err == nil {
		t.Fatal("connection joined a second lobby")
	}
	if s.lobbies[1].Size() != 0 || c.Lobby() != 1 {
		t.Fatalf("membership changed: lobby2=%d conn.lobby=%d", s.lobbies[1].Size(), c.Lobby())
	}

	// join is not a lobby command, so asking again from inside a lobby is a
	// protocol violation.
	if join(t, s, c, 2) {
		t.Fatal("expected join from lobby scope to drop the connection")
	}
	s.Disconnect(c)
	if s.lobbies[0].Size() != 0 {
		t.Fatal("dropped connection is still a member")
	}
}

func TestLeaveReturnsToServerScope(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 2})
	c, _ := connect(t, s, "a")
	if !join(t, s, c, 1) {
		t.Fatal("join dropped")
	}
	if !s.dispatch(c, inbound(t, "leave", nil)) {
		t.Fatal("leave dropped")
	}
	if c.Lobby() != 0 || s.lobbies[0].Size() != 0 {
		t.Fatal("connection still in lobby 1")
	}
	if !join(t, s, c, 2) || c.Lobby() != 2 {
		t.Fatal("could not join lobby 2 after leaving")
	}
}

func TestDuplicateIdentityInLobbyIsFatal(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	a := s.accept(newFakePeer())
	b := s.accept(newFakePeer())
	s.withLock(func() {
		a.Authenticate(models.Identity{ID: "same"})
		b.Authenticate(models.Identity{ID: "same"})
	})
	if !join(t, s, a, 0) {
		t.Fatal("first join dropped")
	}
	if join(t, s, b, 0) {
		t.Fatal("second connection with the same identity was kept")
	}
	if n := s.lobbies[0].Size(); n != 1 {
		t.Fatalf("lobby size %d, want 1", n)
	}
}

func TestLastMemberLeavingClosesLobby(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1, debug: true})
	c, p := connect(t, s, "a")
	join(t, s, c, 0)
	l := s.lobbies[0]
	s.withLock(func() { l.StartRun(false, game.Options{Deck: "red", Stake: 1}) })

	s.Disconnect(c)
	if !p.isClosed() {
		t.Fatal("peer not closed")
	}
	if l.Size() != 0 || l.Game().IsRunning() {
		t.Fatal("lobby not reset after last member left")
	}
	if s.ConnectionCount() != 0 {
		t.Fatal("connection still registered")
	}
	s.Disconnect(c)
}

func TestDisconnectEliminatesAndEndsVersusRun(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	var conns []*Connection
	var peers []*fakePeer
	for _, id := range []string{"a", "b", "c"} {
		c, p := connect(t, s, id)
		join(t, s, c, 0)
		conns = append(conns, c)
		peers = append(peers, p)
	}
	l := s.lobbies[0]
	s.withLock(func() { l.StartRun(true, game.Options{Deck: "red", Stake: 1}) })

	s.Disconnect(conns[2])
	if !l.Game().IsEliminated("c") || !l.Game().IsRunning() {
		t.Fatal("expected c eliminated and the run to continue")
	}

	peers[0].drain()
	s.Disconnect(conns[1])
	if l.Game().IsRunning() {
		t.Fatal("run should end when one participant remains")
	}
	var over *pkgmodels.ApiResponse
	for _, r := range peers[0].drain() {
		if r.Cmd == models.EventGameOver {
			r := r
			over = &r
		}
	}
	if over == nil {
		t.Fatal("survivor did not receive game_over")
	}
	data := over.Data.(map[string]interface{})
	if data["winner"] != "a" {
		t.Fatalf("winner %v, want a", data["winner"])
	}
}

func TestServeDropsOnProtocolViolation(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	p := newFakePeer()
	done := make(chan struct{})
	go func() {
		s.Serve(p)
		close(done)
	}()

	p.in <- inbound(t, "auth", map[string]interface{}{"id": "a"})
	select {
	case r := <-p.out:
		if !r.Success || r.Cmd != "auth" {
			t.Fatalf("unexpected reply %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no auth reply")
	}

	p.in <- models.Inbound{Raw: json.RawMessage(`{"hello":"world"}`)}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if !p.isClosed() || s.ConnectionCount() != 0 {
		t.Fatal("connection not cleaned up")
	}
}

func TestSweepRequestsExpiresStaleRequests(t *testing.T) {
	s, clock := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	var id string
	s.withLock(func() { id = s.Requests().Create("a", 1, nil).ID })

	clock.Advance(29 * time.Second)
	if n := s.SweepRequests(); n != 0 {
		t.Fatalf("swept %d requests before their lifetime", n)
	}
	clock.Advance(2 * time.Second)
	if n := s.SweepRequests(); n != 1 {
		t.Fatalf("swept %d requests, want 1", n)
	}
	s.withLock(func() {
		if _, ok := s.Requests().Get(id); ok {
			t.Error("expired request still found")
		}
	})
}

func TestKickSendsNoticeAndDisconnects(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 4, maxLobbies: 1})
	c, p := connect(t, s, "a")
	join(t, s, c, 0)
	p.drain()

	if n := s.Kick("a"); n != 1 {
		t.Fatalf("kicked %d, want 1", n)
	}
	if !p.isClosed() || s.lobbies[0].Size() != 0 {
		t.Fatal("kicked player still connected")
	}
	if n := s.Kick("a"); n != 0 {
		t.Fatalf("second kick closed %d connections", n)
	}
	if _, err := s.Ban("a"); err == nil {
		t.Fatal("expected read-only settings to refuse a ban")
	}
}

func TestPickLobbyPolicy(t *testing.T) {
	s, _ := newTestServer(t, fakeSettings{maxPlayers: 1, maxLobbies: 2})
	a, _ := connect(t, s, "a")
	b, _ := connect(t, s, "b")
	c, pc := connect(t, s, "c")

	join(t, s, a, 0)
	join(t, s, b, 0)
	if a.Lobby() != 1 || b.Lobby() != 2 {
		t.Fatalf("lobby 0 should pick the first open lobby: a=%d b=%d", a.Lobby(), b.Lobby())
	}

	if !join(t, s, c, 0) {
		t.Fatal("join dropped")
	}
	replies := pc.drain()
	if last := replies[len(replies)-1]; last.Success {
		t.Fatal("expected no lobby to be joinable")
	}
	if !join(t, s, c, 9) {
		t.Fatal("join dropped")
	}
	replies = pc.drain()
	if last := replies[len(replies)-1]; last.Success || last.Error != "lobby 9 does not exist" {
		t.Fatalf("unexpected reply %+v", last)
	}
}
