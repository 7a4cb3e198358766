package session

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/correlator"
	"github.com/mapleleafu/cardarena/arena-backend/game"
	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

// Settler is implemented by persistent request payloads that may be able to
// finish when the lobby roster shrinks, because the only participants they
// were still waiting on have left or been eliminated.
type Settler interface {
	Settle(l *Lobby, req *correlator.Request)
}

// Lobby is one room of the pool. Every method expects the server lock to be
// held; command handlers always run under it.
type Lobby struct {
	number  int
	server  *Server
	members []ConnID
	game    *game.Game
	router  *Router[*Lobby]

	runID     string
	startedAt time.Time
}

func newLobby(s *Server, number int, rng *rand.Rand) *Lobby {
	l := &Lobby{
		number: number,
		server: s,
		game:   game.New(rng),
		router: NewRouter[*Lobby](fmt.Sprintf("lobby %d", number), s.log),
	}
	l.router.decorate = func(l *Lobby, resp pkgmodels.ApiResponse) pkgmodels.ApiResponse {
		return resp.WithGameState(l.summary())
	}
	return l
}

func (l *Lobby) Number() int { return l.number }

func (l *Lobby) Server() *Server { return l.server }

func (l *Lobby) Game() *game.Game { return l.game }

func (l *Lobby) RunID() string { return l.runID }

func (l *Lobby) Size() int { return len(l.members) }

func (l *Lobby) log() *zap.Logger {
	return l.server.log.With(zap.Int("lobby", l.number))
}

// Members returns the member connections in roster order.
func (l *Lobby) Members() []*Connection {
	out := make([]*Connection, 0, len(l.members))
	for _, id := range l.members {
		if c, ok := l.server.conns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Host is the member at roster position 0.
func (l *Lobby) Host() *Connection {
	if len(l.members) == 0 {
		return nil
	}
	return l.server.conns[l.members[0]]
}

func (l *Lobby) IsHost(c *Connection) bool {
	return len(l.members) > 0 && l.members[0] == c.id
}

// Member returns the member authenticated as identity id.
func (l *Lobby) Member(id string) (*Connection, bool) {
	for _, c := range l.Members() {
		if c.IdentityID() == id {
			return c, true
		}
	}
	return nil, false
}

// Active returns the remaining participants of the run that are still
// members, in join order.
func (l *Lobby) Active() []string {
	remaining := l.game.Remaining()
	out := remaining[:0]
	for _, id := range remaining {
		if l.hasIdentity(id) {
			out = append(out, id)
		}
	}
	return out
}

func (l *Lobby) hasIdentity(id string) bool {
	_, ok := l.Member(id)
	return ok
}

// RandomOpponent draws another active participant of the run uniformly.
func (l *Lobby) RandomOpponent(c *Connection) (*Connection, bool) {
	id, ok := l.game.RandomPlayer(c.IdentityID(), l.hasIdentity)
	if !ok {
		return nil, false
	}
	return l.Member(id)
}

func (l *Lobby) joinBlocker(c *Connection) error {
	if l.game.IsRunning() {
		return responses.IllegalStateError{Msg: "cannot join: a run is in progress"}
	}
	if len(l.members) >= l.server.settings.MaxPlayers() {
		return responses.IllegalStateError{Msg: "cannot join: lobby is full"}
	}
	if id := c.IdentityID(); id != "" && l.hasIdentity(id) {
		return responses.UnauthorizedError{Msg: "cannot join: identity already in lobby", Drop: true}
	}
	return nil
}

// Add puts an authenticated connection into the lobby and tells everyone.
func (l *Lobby) Add(c *Connection) error {
	if _, ok := c.Identity(); !ok {
		return responses.UnauthorizedError{Msg: "authenticate before joining a lobby"}
	}
	if c.lobby != 0 {
		return responses.IllegalStateError{Msg: "already in a lobby"}
	}
	if err := l.joinBlocker(c); err != nil {
		return err
	}
	l.members = append(l.members, c.id)
	c.lobby = l.number
	l.log().Info("player joined", connFields(c)...)
	l.Broadcast(pkgmodels.SuccessResponse(models.CmdJoin, map[string]interface{}{
		"player": c.IdentityID(),
		"roster": l.Roster(),
	}), false)
	return nil
}

// Remove takes c out of the lobby. A departing participant of a versus run is
// eliminated first. The last member leaving closes the lobby.
func (l *Lobby) Remove(c *Connection) {
	idx := slices.Index(l.members, c.id)
	if idx < 0 {
		return
	}
	id := c.IdentityID()
	eliminated := l.game.Eliminate(id)
	if eliminated {
		l.record("eliminated", id, map[string]interface{}{"reason": "left"})
	}

	l.members = slices.Delete(l.members, idx, idx+1)
	c.lobby = 0
	l.log().Info("player left", connFields(c)...)

	if len(l.members) == 0 {
		l.Close()
		return
	}
	l.Broadcast(pkgmodels.SuccessResponse(models.CmdLeave, map[string]interface{}{
		"player": id,
		"roster": l.Roster(),
	}), false)
	if eliminated {
		l.AfterElimination()
	} else if l.game.IsRunning() {
		l.settlePending()
	}
}

// Close ends any run and disconnects whoever is still a member.
func (l *Lobby) Close() {
	l.endRun("")
	l.game.Reset()
	l.server.requests.CompleteLobby(l.number)
	for _, c := range l.Members() {
		c.lobby = 0
		l.server.disconnectLocked(c)
	}
	l.members = nil
	l.log().Debug("lobby closed")
}

// Roster describes the members in roster order.
func (l *Lobby) Roster() []models.RosterEntry {
	members := l.Members()
	out := make([]models.RosterEntry, 0, len(members))
	for i, c := range members {
		id, _ := c.Identity()
		out = append(out, models.RosterEntry{
			ID:         id.ID,
			Name:       id.DisplayName(),
			UnlockHash: id.UnlockHash,
			Host:       i == 0,
			Eliminated: l.game.IsEliminated(id.ID),
		})
	}
	return out
}

func (l *Lobby) Info() models.LobbyInfo {
	info := models.LobbyInfo{
		Number:     l.number,
		Players:    len(l.members),
		MaxPlayers: l.server.settings.MaxPlayers(),
		State:      l.game.State().String(),
		Versus:     l.game.IsVersus(),
	}
	if h := l.Host(); h != nil {
		info.Host = h.IdentityID()
	}
	return info
}

func (l *Lobby) stamp(resp pkgmodels.ApiResponse) pkgmodels.ApiResponse {
	return resp.WithGameState(l.summary())
}

// summary counts only participants that are still members as remaining.
func (l *Lobby) summary() pkgmodels.GameState {
	s := l.game.Summary()
	s.Remaining = len(l.Active())
	return s
}

func (l *Lobby) skip(c *Connection, excludeEliminated bool) bool {
	return excludeEliminated && l.game.IsEliminated(c.IdentityID())
}

// SendToPlayer delivers resp to one member.
func (l *Lobby) SendToPlayer(c *Connection, resp pkgmodels.ApiResponse, excludeEliminated bool) {
	if l.skip(c, excludeEliminated) {
		return
	}
	c.Send(l.stamp(resp))
}

// SendToOthers delivers resp to every member except c.
func (l *Lobby) SendToOthers(c *Connection, resp pkgmodels.ApiResponse, excludeEliminated bool) {
	resp = l.stamp(resp)
	for _, m := range l.Members() {
		if m == c || l.skip(m, excludeEliminated) {
			continue
		}
		m.Send(resp)
	}
}

// Broadcast delivers resp to every member.
func (l *Lobby) Broadcast(resp pkgmodels.ApiResponse, excludeEliminated bool) {
	l.SendToOthers(nil, resp, excludeEliminated)
}

// StartRun begins a run with the current members as participants.
func (l *Lobby) StartRun(versus bool, opts game.Options) bool {
	participants := make([]string, 0, len(l.members))
	for _, c := range l.Members() {
		participants = append(participants, c.IdentityID())
	}
	if !l.game.Start(participants, versus, opts) {
		return false
	}
	l.runID = uuid.NewString()
	l.startedAt = l.server.clock.Now()
	l.record("start", "", map[string]interface{}{
		"versus": versus,
		"deck":   opts.Deck,
		"stake":  opts.Stake,
		"seed":   opts.Seed,
	})
	for _, id := range participants {
		l.record("participant", id, nil)
	}
	l.log().Info("run started", zap.String("run", l.runID), zap.Bool("versus", versus), zap.Int("players", len(participants)))
	return true
}

// StopRun ends the current run without a winner and tells every member.
func (l *Lobby) StopRun() bool {
	if !l.endRun("") {
		return false
	}
	l.Broadcast(pkgmodels.SuccessResponse(models.CmdStop, map[string]interface{}{}), false)
	return true
}

// endRun archives and resets the current run.
func (l *Lobby) endRun(winner string) bool {
	if !l.game.IsRunning() {
		return false
	}
	opts := l.game.Options()
	l.record("end", winner, nil)
	l.server.recorder.SaveRun(models.Run{
		ID:         l.runID,
		Lobby:      l.number,
		Versus:     l.game.IsVersus(),
		Deck:       opts.Deck,
		Stake:      opts.Stake,
		Seed:       opts.Seed,
		CreatedAt:  l.startedAt,
		FinishedAt: l.server.clock.Now(),
		UserIDs:    l.game.Participants(),
		Winner:     winner,
	})
	l.log().Info("run ended", zap.String("run", l.runID), zap.String("winner", winner))
	l.game.Reset()
	l.server.requests.CompleteLobby(l.number)
	l.runID = ""
	return true
}

// AdvanceRound moves a versus run forward once everyone remaining is ready
// for the boss, or once every remaining player has reported a boss score.
func (l *Lobby) AdvanceRound() {
	g := l.game
	switch {
	case g.AllReady():
		g.StartBoss()
		l.record("start_boss", "", nil)
		l.Broadcast(pkgmodels.SuccessResponse(models.EventStartBoss, map[string]interface{}{}), true)
	case g.ScoringFinished():
		board := g.Leaderboard()
		l.record("leaderboard", "", map[string]interface{}{"leaderboard": board})
		l.Broadcast(pkgmodels.SuccessResponse(models.EventLeaderboard, map[string]interface{}{
			"leaderboard": board,
		}), false)
		g.FinishRound()
	}
}

// AfterElimination ends the run when at most one participant is left and
// otherwise lets the round and any pending exchanges move on without the
// eliminated player.
func (l *Lobby) AfterElimination() {
	g := l.game
	if !g.IsVersus() || !g.IsRunning() {
		return
	}
	remaining := g.Remaining()
	if len(remaining) <= 1 {
		winner := ""
		if len(remaining) == 1 {
			winner = remaining[0]
		}
		standings := l.finalStandings(winner)
		l.record("game_over", winner, map[string]interface{}{"standings": standings})
		l.Broadcast(pkgmodels.SuccessResponse(models.EventGameOver, map[string]interface{}{
			"winner":    winner,
			"standings": standings,
		}), false)
		l.endRun(winner)
		return
	}
	l.AdvanceRound()
	l.settlePending()
}

func (l *Lobby) finalStandings(winner string) []game.Standing {
	board := l.game.Leaderboard()
	if winner == "" || slices.ContainsFunc(board, func(s game.Standing) bool { return s.ID == winner }) {
		return board
	}
	return append([]game.Standing{{ID: winner}}, board...)
}

func (l *Lobby) settlePending() {
	for _, req := range l.server.requests.ByLobby(l.number) {
		if s, ok := req.Payload.(Settler); ok {
			s.Settle(l, req)
		}
	}
}

func (l *Lobby) record(action, playerID string, data map[string]interface{}) {
	if l.runID == "" {
		return
	}
	l.server.recorder.RecordAction(models.GameAction{
		RunID:     l.runID,
		Lobby:     l.number,
		PlayerID:  playerID,
		Action:    action,
		Data:      data,
		Timestamp: l.server.clock.Now().UnixMilli(),
	})
}

// Record journals a run event on behalf of a command handler.
func (l *Lobby) Record(action, playerID string, data map[string]interface{}) {
	l.record(action, playerID, data)
}
