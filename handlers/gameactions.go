package handlers

import (
	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
	"github.com/mapleleafu/cardarena/arena-backend/session"
	"github.com/mapleleafu/cardarena/arena-backend/utils"
)

var errNotRunning = responses.IllegalStateError{Msg: "no run in progress"}

// handleRelay forwards an opaque game event to the other members. In versus
// runs eliminated players stop receiving live traffic.
func handleRelay(l *session.Lobby, c *session.Connection, msg models.Inbound) (any, error) {
	g := l.Game()
	if !g.IsRunning() {
		return nil, errNotRunning
	}
	id := c.IdentityID()
	if g.IsVersus() && g.IsEliminated(id) {
		return nil, responses.IllegalStateError{Msg: "eliminated players cannot relay"}
	}
	req, err := utils.Decode[models.RelayRequest](msg)
	if err != nil {
		return nil, err
	}
	l.SendToOthers(c, pkgmodels.SuccessResponse(models.CmdRelay, map[string]interface{}{
		"player":  id,
		"event":   req.Event,
		"payload": req.Payload,
	}), g.IsVersus())
	return nil, nil
}

func handleReadyBoss(l *session.Lobby, c *session.Connection, _ models.Inbound) (any, error) {
	g := l.Game()
	if !g.IsVersus() {
		return nil, responses.IllegalStateError{Msg: "ready_boss is only valid in versus runs"}
	}
	id := c.IdentityID()
	if _, ok := g.PrepareForBoss(id); !ok {
		return nil, responses.IllegalStateError{Msg: "cannot ready for the boss now"}
	}
	l.Record("ready_boss", id, nil)
	l.Broadcast(pkgmodels.SuccessResponse(models.CmdReadyBoss, map[string]interface{}{"player": id}), true)
	l.AdvanceRound()
	return nil, nil
}

func handleEliminated(l *session.Lobby, c *session.Connection, _ models.Inbound) (any, error) {
	g := l.Game()
	if !g.IsVersus() {
		return nil, responses.IllegalStateError{Msg: "eliminated is only valid in versus runs"}
	}
	id := c.IdentityID()
	if g.IsEliminated(id) {
		return nil, nil
	}
	if !g.Eliminate(id) {
		return nil, responses.IllegalStateError{Msg: "cannot be eliminated now"}
	}
	l.Record("eliminated", id, map[string]interface{}{"reason": "defeated"})
	l.Broadcast(pkgmodels.SuccessResponse(models.CmdEliminated, map[string]interface{}{"player": id}), false)
	l.AfterElimination()
	return nil, nil
}

// handleScore acknowledges the score to the sender before any leaderboard it
// completes goes out.
func handleScore(l *session.Lobby, c *session.Connection, msg models.Inbound) (any, error) {
	g := l.Game()
	if !g.IsVersus() {
		return nil, responses.IllegalStateError{Msg: "score is only valid in versus runs"}
	}
	req, err := utils.Decode[models.ScoreRequest](msg)
	if err != nil {
		return nil, err
	}
	id := c.IdentityID()
	if _, ok := g.AddScore(id, *req.Score); !ok {
		return nil, responses.IllegalStateError{Msg: "cannot submit a score now"}
	}
	l.Record("score", id, map[string]interface{}{"score": *req.Score})
	l.SendToPlayer(c, pkgmodels.SuccessResponse(models.CmdScore, map[string]interface{}{"score": *req.Score}), false)
	l.AdvanceRound()
	return nil, nil
}
