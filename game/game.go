// Package game holds the per-lobby run state: mode, participants, eliminations,
// boss readiness and the boss round score table.
//
// A Game is not safe for concurrent use; the session server serializes every
// access behind its global lock.
package game

import (
	"math/rand/v2"
	"slices"

	"github.com/mapleleafu/cardarena/arena-backend/pkg/models"
)

type State int

const (
	NotRunning State = iota
	InProgress
	WaitingForBoss
	FightingBoss
	WaitingForLeaderboard
)

func (s State) String() string {
	switch s {
	case NotRunning:
		return "NOT_RUNNING"
	case InProgress:
		return "IN_PROGRESS"
	case WaitingForBoss:
		return "WAITING_FOR_BOSS"
	case FightingBoss:
		return "FIGHTING_BOSS"
	case WaitingForLeaderboard:
		return "WAITING_FOR_LEADERBOARD"
	}
	return "UNKNOWN"
}

// Options are the run parameters chosen by the host. They are opaque to the
// server apart from the stake eligibility check done before Start.
type Options struct {
	Deck  string
	Stake int
	Seed  string
}

// Standing is one leaderboard row.
type Standing struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Eliminated bool    `json:"eliminated"`
}

type Game struct {
	state   State
	versus  bool
	options Options

	participants []string
	eliminated   []string
	bossReady    map[string]struct{}
	scores       map[string]float64
	scoreOrder   []string

	rng *rand.Rand
}

// New returns a game in NOT_RUNNING. A nil rng uses a randomly seeded source.
func New(rng *rand.Rand) *Game {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	g := &Game{rng: rng}
	g.Reset()
	return g
}

// Reset returns the game to NOT_RUNNING from any state.
func (g *Game) Reset() {
	g.state = NotRunning
	g.versus = false
	g.options = Options{}
	g.participants = nil
	g.eliminated = nil
	g.clearRound()
}

// Start snapshots the participants and begins a run.
func (g *Game) Start(participants []string, versus bool, opts Options) bool {
	if g.state != NotRunning {
		return false
	}
	g.Reset()
	g.participants = slices.Clone(participants)
	g.versus = versus
	g.options = opts
	g.state = InProgress
	return true
}

func (g *Game) State() State { return g.state }

func (g *Game) IsRunning() bool { return g.state != NotRunning }

func (g *Game) IsVersus() bool { return g.versus }

func (g *Game) Options() Options { return g.options }

// Participants returns the membership snapshot taken at Start.
func (g *Game) Participants() []string { return slices.Clone(g.participants) }

func (g *Game) IsParticipant(id string) bool {
	return slices.Contains(g.participants, id)
}

func (g *Game) IsEliminated(id string) bool {
	return slices.Contains(g.eliminated, id)
}

// Remaining returns the participants that have not been eliminated, in join order.
func (g *Game) Remaining() []string {
	out := make([]string, 0, len(g.participants))
	for _, id := range g.participants {
		if !g.IsEliminated(id) {
			out = append(out, id)
		}
	}
	return out
}

// Eliminated returns eliminated identities in elimination order.
func (g *Game) Eliminated() []string { return slices.Clone(g.eliminated) }

// PrepareForBoss marks id ready for the boss round. ok is false when the call
// is not legal; allReady reports whether every remaining participant is ready.
// Moving to FIGHTING_BOSS is left to the caller (see StartBoss).
func (g *Game) PrepareForBoss(id string) (allReady, ok bool) {
	if !g.versus {
		return false, false
	}
	if g.state != InProgress && g.state != WaitingForBoss {
		return false, false
	}
	if !g.IsParticipant(id) || g.IsEliminated(id) {
		return false, false
	}
	g.state = WaitingForBoss
	g.bossReady[id] = struct{}{}
	return g.AllReady(), true
}

// AllReady reports whether a WAITING_FOR_BOSS round can start.
func (g *Game) AllReady() bool {
	if !g.versus || g.state != WaitingForBoss {
		return false
	}
	for _, id := range g.Remaining() {
		if _, ok := g.bossReady[id]; !ok {
			return false
		}
	}
	return true
}

// StartBoss moves WAITING_FOR_BOSS to FIGHTING_BOSS.
func (g *Game) StartBoss() bool {
	if g.state != WaitingForBoss {
		return false
	}
	g.clearRound()
	g.state = FightingBoss
	return true
}

// Eliminate adds id to the elimination set and drops any score it submitted.
// It reports whether the set changed. The state is left alone.
func (g *Game) Eliminate(id string) bool {
	if !g.versus || g.state == NotRunning {
		return false
	}
	if !g.IsParticipant(id) || g.IsEliminated(id) {
		return false
	}
	g.eliminated = append(g.eliminated, id)
	delete(g.bossReady, id)
	if _, ok := g.scores[id]; ok {
		delete(g.scores, id)
		g.scoreOrder = slices.DeleteFunc(g.scoreOrder, func(s string) bool { return s == id })
	}
	return true
}

// AddScore records the boss round score of id. Only the first score per
// identity counts. finished reports whether every remaining participant has
// a score; the caller then publishes the leaderboard and calls FinishRound.
func (g *Game) AddScore(id string, score float64) (finished, ok bool) {
	if !g.versus {
		return false, false
	}
	if g.state != FightingBoss && g.state != WaitingForLeaderboard {
		return false, false
	}
	if !g.IsParticipant(id) || g.IsEliminated(id) {
		return false, false
	}
	if _, seen := g.scores[id]; !seen {
		g.scores[id] = score
		g.scoreOrder = append(g.scoreOrder, id)
	}
	g.state = WaitingForLeaderboard
	return g.ScoringFinished(), true
}

// ScoringFinished reports whether every remaining participant has a score.
func (g *Game) ScoringFinished() bool {
	if !g.versus || (g.state != FightingBoss && g.state != WaitingForLeaderboard) {
		return false
	}
	for _, id := range g.Remaining() {
		if _, ok := g.scores[id]; !ok {
			return false
		}
	}
	return true
}

// FinishRound closes a scored boss round and goes back to IN_PROGRESS.
func (g *Game) FinishRound() bool {
	if g.state != FightingBoss && g.state != WaitingForLeaderboard {
		return false
	}
	g.clearRound()
	g.state = InProgress
	return true
}

// Leaderboard lists scored participants by descending score, then eliminated
// participants with the most recently eliminated first.
func (g *Game) Leaderboard() []Standing {
	out := make([]Standing, 0, len(g.scoreOrder)+len(g.eliminated))
	for _, id := range g.scoreOrder {
		out = append(out, Standing{ID: id, Score: g.scores[id]})
	}
	slices.SortStableFunc(out, func(a, b Standing) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	for i := len(g.eliminated) - 1; i >= 0; i-- {
		out = append(out, Standing{ID: g.eliminated[i], Eliminated: true})
	}
	return out
}

// RandomPlayer picks a remaining participant other than exclude for which
// present reports true. A nil present accepts everyone. ok is false when there
// is nobody to pick.
func (g *Game) RandomPlayer(exclude string, present func(id string) bool) (id string, ok bool) {
	candidates := slices.DeleteFunc(g.Remaining(), func(s string) bool {
		return s == exclude || (present != nil && !present(s))
	})
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[g.rng.IntN(len(candidates))], true
}

// Summary is the snapshot attached to every lobby message.
func (g *Game) Summary() models.GameState {
	return models.GameState{
		State:      g.state.String(),
		Remaining:  len(g.Remaining()),
		Eliminated: len(g.eliminated),
	}
}

// clearRound empties boss readiness and the score table together.
func (g *Game) clearRound() {
	g.bossReady = make(map[string]struct{})
	g.scores = make(map[string]float64)
	g.scoreOrder = nil
}

const seedAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewSeed draws an eight character run seed from the game's rng.
func (g *Game) NewSeed() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = seedAlphabet[g.rng.IntN(len(seedAlphabet))]
	}
	return string(b)
}
