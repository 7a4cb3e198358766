package handlers

import (
	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
	"github.com/mapleleafu/cardarena/arena-backend/session"
	"github.com/mapleleafu/cardarena/arena-backend/utils"
)

// ServerCommands registers the commands available before a connection has
// joined a lobby.
func ServerCommands(resolver IdentityResolver) func(r *session.Router[*session.Server]) {
	return func(r *session.Router[*session.Server]) {
		r.Handle(models.CmdAuth, func(s *session.Server, c *session.Connection, msg models.Inbound) (any, error) {
			return handleAuth(s, c, msg, resolver)
		})
		r.Handle(models.CmdJoin, handleJoin)
		r.Handle(models.CmdLobbies, handleLobbies)
		r.Handle(models.CmdPing, func(*session.Server, *session.Connection, models.Inbound) (any, error) {
			return map[string]string{"pong": "pong"}, nil
		})
	}
}

func handleAuth(s *session.Server, c *session.Connection, msg models.Inbound, resolver IdentityResolver) (any, error) {
	if _, ok := c.Identity(); ok {
		return nil, responses.IllegalStateError{Msg: "already authenticated"}
	}
	req, err := utils.Decode[models.AuthRequest](msg)
	if err != nil {
		return nil, err
	}
	identity, err := resolver.Resolve(req)
	if err != nil {
		return nil, err
	}

	settings := s.Settings()
	if settings.Banned(identity.ID) {
		return nil, responses.UnauthorizedError{Msg: "banned", Drop: true}
	}
	if !settings.Whitelisted(identity.ID) {
		return nil, responses.UnauthorizedError{Msg: "not whitelisted", Drop: true}
	}
	if s.IdentityConnected(identity.ID, c) {
		return nil, responses.UnauthorizedError{Msg: "identity already connected", Drop: true}
	}

	c.Authenticate(identity)
	s.Logger().Info("player authenticated",
		zap.Uint64("conn", uint64(c.ID())),
		zap.String("player", identity.ID),
		zap.String("name", identity.DisplayName()),
	)
	return map[string]interface{}{
		"id":      identity.ID,
		"name":    identity.DisplayName(),
		"lobbies": s.LobbiesLocked(),
	}, nil
}

func handleJoin(s *session.Server, c *session.Connection, msg models.Inbound) (any, error) {
	if _, ok := c.Identity(); !ok {
		return nil, responses.UnauthorizedError{Msg: "authenticate before joining a lobby"}
	}
	req, err := utils.Decode[models.JoinRequest](msg)
	if err != nil {
		return nil, err
	}
	lobby, err := s.PickLobby(req.Lobby, c)
	if err != nil {
		return nil, err
	}
	if err := lobby.Add(c); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"lobby":  lobby.Info(),
		"roster": lobby.Roster(),
	}, nil
}

func handleLobbies(s *session.Server, _ *session.Connection, _ models.Inbound) (any, error) {
	return map[string]interface{}{"lobbies": s.LobbiesLocked()}, nil
}
