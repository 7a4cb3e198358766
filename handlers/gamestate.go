package handlers

import (
	"fmt"

	"github.com/mapleleafu/cardarena/arena-backend/game"
	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
	"github.com/mapleleafu/cardarena/arena-backend/session"
	"github.com/mapleleafu/cardarena/arena-backend/utils"
)

// LobbyCommands registers the commands available to lobby members.
func LobbyCommands() func(r *session.Router[*session.Lobby]) {
	return func(r *session.Router[*session.Lobby]) {
		r.Handle(models.CmdPing, func(*session.Lobby, *session.Connection, models.Inbound) (any, error) {
			return map[string]string{"pong": "pong"}, nil
		})
		r.Handle(models.CmdLobbyInfo, handleLobbyInfo)
		r.Handle(models.CmdLeave, handleLeave)
		r.Handle(models.CmdStart, handleStart)
		r.Handle(models.CmdStop, handleStop)

		r.Handle(models.CmdRelay, handleRelay)
		r.Handle(models.CmdReadyBoss, handleReadyBoss)
		r.Handle(models.CmdEliminated, handleEliminated)
		r.Handle(models.CmdScore, handleScore)

		r.Handle(models.CmdSwapJokers, handleSwapJokers)
		r.Handle(models.CmdSwapJokersReply, handleSwapJokersReply)
		r.Handle(models.CmdCollect, handleCollect)
		r.Handle(models.CmdCollectReply, handleCollectReply)
	}
}

func handleLobbyInfo(l *session.Lobby, _ *session.Connection, _ models.Inbound) (any, error) {
	return map[string]interface{}{
		"lobby":  l.Info(),
		"roster": l.Roster(),
		"run_id": l.RunID(),
	}, nil
}

func handleLeave(l *session.Lobby, c *session.Connection, _ models.Inbound) (any, error) {
	number := l.Number()
	l.Remove(c)
	return map[string]interface{}{"lobby": number}, nil
}

func handleStart(l *session.Lobby, c *session.Connection, msg models.Inbound) (any, error) {
	if !l.IsHost(c) {
		return nil, responses.UnauthorizedError{Msg: "only the host can start a run"}
	}
	if l.Game().IsRunning() {
		return nil, responses.IllegalStateError{Msg: "a run is already in progress"}
	}
	req, err := utils.Decode[models.StartRequest](msg)
	if err != nil {
		return nil, err
	}
	if l.Size() < 2 && !l.Server().Settings().Debug() {
		return nil, responses.IllegalStateError{Msg: "at least two players are needed to start"}
	}
	for _, m := range l.Members() {
		id, _ := m.Identity()
		if !id.CanPlay(req.Deck, req.Stake) {
			return nil, responses.IllegalStateError{
				Msg: fmt.Sprintf("%s has not unlocked stake %d on %s", id.DisplayName(), req.Stake, req.Deck),
			}
		}
	}

	seed := req.Seed
	if seed == "" {
		seed = l.Game().NewSeed()
	}
	opts := game.Options{Deck: req.Deck, Stake: req.Stake, Seed: seed}
	if !l.StartRun(req.Versus, opts) {
		return nil, responses.IllegalStateError{Msg: "a run is already in progress"}
	}

	l.Broadcast(pkgmodels.SuccessResponse(models.CmdStart, map[string]interface{}{
		"run_id":  l.RunID(),
		"versus":  req.Versus,
		"deck":    opts.Deck,
		"stake":   opts.Stake,
		"seed":    opts.Seed,
		"players": l.Game().Participants(),
	}), false)
	return nil, nil
}

func handleStop(l *session.Lobby, c *session.Connection, _ models.Inbound) (any, error) {
	if !l.IsHost(c) {
		return nil, responses.UnauthorizedError{Msg: "only the host can stop a run"}
	}
	if !l.StopRun() {
		return nil, responses.IllegalStateError{Msg: "no run in progress"}
	}
	return nil, nil
}
