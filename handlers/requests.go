package handlers

import (
	"encoding/json"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/correlator"
	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
	"github.com/mapleleafu/cardarena/arena-backend/session"
	"github.com/mapleleafu/cardarena/arena-backend/utils"
)

// Two exchanges go through the correlator. swap_jokers hands the requester's
// jokers to one random opponent and returns that opponent's answer.
// collect asks every other remaining participant for items and returns the
// shuffled union to the requester only.

// swapExchange is the payload of a pending swap_jokers request.
type swapExchange struct {
	target  string
	offered []json.RawMessage
}

// Settle cancels the swap once the target is gone, handing the offered jokers
// back to the requester.
func (x *swapExchange) Settle(l *session.Lobby, req *correlator.Request) {
	if slices.Contains(l.Active(), x.target) {
		return
	}
	l.Server().Requests().Complete(req.ID)
	if creator, ok := l.Member(req.Creator); ok {
		l.SendToPlayer(creator, pkgmodels.SuccessResponse(models.EventSwapJokersResult, map[string]interface{}{
			"request_id": req.ID,
			"from":       x.target,
			"jokers":     x.offered,
			"cancelled":  true,
		}), false)
	}
}

// collectExchange is the payload of a pending collect request.
type collectExchange struct {
	kind   string
	gather *correlator.Gather[[]json.RawMessage]
}

func (x *collectExchange) Settle(l *session.Lobby, req *correlator.Request) {
	x.tryFinish(l, req)
}

// tryFinish delivers the aggregate once every expected participant that is
// still in the run has answered.
func (x *collectExchange) tryFinish(l *session.Lobby, req *correlator.Request) {
	creator, ok := l.Member(req.Creator)
	if !ok {
		l.Server().Requests().Complete(req.ID)
		return
	}
	if !x.gather.Ready(l.Active()) {
		return
	}
	items, ok := x.gather.Finalize()
	if !ok {
		return
	}
	l.Server().Requests().Complete(req.ID)
	if items == nil {
		items = []json.RawMessage{}
	}
	items = lo.Shuffle(items)
	l.Record("collect_result", req.Creator, map[string]interface{}{
		"kind":         x.kind,
		"items":        len(items),
		"contributors": x.gather.Contributors(),
	})
	l.SendToPlayer(creator, pkgmodels.SuccessResponse(models.EventCollectResult, map[string]interface{}{
		"request_id": req.ID,
		"kind":       x.kind,
		"items":      items,
	}), false)
}

func concatItems(acc, v []json.RawMessage) []json.RawMessage {
	return append(acc, v...)
}

// requireActive rejects exchanges started by someone who is not playing.
func requireActive(l *session.Lobby, id string) error {
	g := l.Game()
	if !g.IsRunning() {
		return errNotRunning
	}
	if !slices.Contains(l.Active(), id) {
		return responses.IllegalStateError{Msg: "only active participants can do that"}
	}
	return nil
}

// lookup returns the pending request id of kind P in lobby l. Anything that
// is unknown, expired or belongs elsewhere reports false and the reply is
// dropped silently.
func lookup[P any](l *session.Lobby, id string) (*correlator.Request, P, bool) {
	var zero P
	req, ok := l.Server().Requests().Get(id)
	if !ok || req.Lobby != l.Number() {
		return nil, zero, false
	}
	payload, ok := req.Payload.(P)
	if !ok {
		return nil, zero, false
	}
	return req, payload, true
}

func handleSwapJokers(l *session.Lobby, c *session.Connection, msg models.Inbound) (any, error) {
	id := c.IdentityID()
	if err := requireActive(l, id); err != nil {
		return nil, err
	}
	in, err := utils.Decode[models.SwapJokersRequest](msg)
	if err != nil {
		return nil, err
	}
	target, ok := l.RandomOpponent(c)
	if !ok {
		return map[string]interface{}{"request_id": nil, "target": nil}, nil
	}
	targetID := target.IdentityID()

	req := l.Server().Requests().Create(id, l.Number(), &swapExchange{target: targetID, offered: in.Jokers})
	l.SendToPlayer(target, pkgmodels.SuccessResponse(models.CmdSwapJokers, map[string]interface{}{
		"request_id": req.ID,
		"from":       id,
		"jokers":     in.Jokers,
	}), true)
	l.Server().Logger().Debug("swap requested",
		zap.Int("lobby", l.Number()), zap.String("request", req.ID),
		zap.String("player", id), zap.String("target", targetID))
	return map[string]interface{}{"request_id": req.ID, "target": targetID}, nil
}

func handleSwapJokersReply(l *session.Lobby, c *session.Connection, msg models.Inbound) (any, error) {
	in, err := utils.Decode[models.SwapJokersReply](msg)
	if err != nil {
		return nil, err
	}
	req, x, ok := lookup[*swapExchange](l, in.RequestID)
	if !ok {
		return nil, nil
	}
	if x.target != c.IdentityID() {
		return nil, responses.UnauthorizedError{Msg: "not the target of this swap"}
	}
	l.Server().Requests().Complete(req.ID)
	if creator, ok := l.Member(req.Creator); ok {
		l.SendToPlayer(creator, pkgmodels.SuccessResponse(models.EventSwapJokersResult, map[string]interface{}{
			"request_id": req.ID,
			"from":       x.target,
			"jokers":     in.Jokers,
		}), false)
	}
	l.Record("swap_jokers", req.Creator, map[string]interface{}{"target": x.target})
	return nil, nil
}

func handleCollect(l *session.Lobby, c *session.Connection, msg models.Inbound) (any, error) {
	id := c.IdentityID()
	if err := requireActive(l, id); err != nil {
		return nil, err
	}
	in, err := utils.Decode[models.CollectRequest](msg)
	if err != nil {
		return nil, err
	}
	expected := lo.Without(l.Active(), id)
	x := &collectExchange{
		kind:   in.Kind,
		gather: correlator.NewGather(expected, concatItems),
	}
	req := l.Server().Requests().Create(id, l.Number(), x)

	sub := pkgmodels.SuccessResponse(models.CmdCollect, map[string]interface{}{
		"request_id": req.ID,
		"kind":       in.Kind,
		"from":       id,
	})
	for _, pid := range expected {
		if m, ok := l.Member(pid); ok {
			l.SendToPlayer(m, sub, true)
		}
	}
	l.SendToPlayer(c, pkgmodels.SuccessResponse(models.CmdCollect, map[string]interface{}{
		"request_id": req.ID,
		"expected":   expected,
	}), false)
	x.tryFinish(l, req)
	return nil, nil
}

func handleCollectReply(l *session.Lobby, c *session.Connection, msg models.Inbound) (any, error) {
	in, err := utils.Decode[models.CollectReply](msg)
	if err != nil {
		return nil, err
	}
	req, x, ok := lookup[*collectExchange](l, in.RequestID)
	if !ok {
		return nil, nil
	}
	if !x.gather.Add(c.IdentityID(), in.Items) {
		return nil, nil
	}
	x.tryFinish(l, req)
	return nil, nil
}
