package session

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

// HandlerFunc handles one command within scope S. A non-nil data value is
// sent back to the caller as a success response. Errors should be
// responses.APIError values; anything else is treated as fatal.
type HandlerFunc[S any] func(scope S, c *Connection, msg models.Inbound) (data any, err error)

// Router maps command names to handlers for one scope, either the server
// (before joining a lobby) or a lobby.
type Router[S any] struct {
	scope    string
	log      *zap.Logger
	handlers map[string]HandlerFunc[S]
	decorate func(scope S, resp pkgmodels.ApiResponse) pkgmodels.ApiResponse
}

func NewRouter[S any](scope string, log *zap.Logger) *Router[S] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router[S]{
		scope:    scope,
		log:      log,
		handlers: make(map[string]HandlerFunc[S]),
	}
}

// Handle registers h for cmd. Registering a command twice is a programming
// error and panics.
func (r *Router[S]) Handle(cmd string, h HandlerFunc[S]) {
	if _, dup := r.handlers[cmd]; dup {
		panic(fmt.Sprintf("session: %s router already handles %q", r.scope, cmd))
	}
	r.handlers[cmd] = h
}

// Commands lists the registered command names in sorted order.
func (r *Router[S]) Commands() []string {
	out := make([]string, 0, len(r.handlers))
	for cmd := range r.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Process routes msg to its handler and reports whether c should be kept.
// Unknown or missing commands, fatal errors, untyped errors and panics all
// drop the connection without a reply. Recoverable errors are answered with
// an error response.
func (r *Router[S]) Process(scope S, c *Connection, msg models.Inbound) bool {
	cmd, ok := msg.Command()
	if !ok {
		r.log.Debug("message without command", connFields(c)...)
		return false
	}
	h, ok := r.handlers[cmd]
	if !ok {
		r.log.Debug("unknown command", append(connFields(c), zap.String("cmd", cmd))...)
		return false
	}

	data, err := r.invoke(h, scope, c, msg, cmd)
	if err != nil {
		var apiErr responses.APIError
		if errors.As(err, &apiErr) && !apiErr.Fatal() {
			c.Send(r.shape(scope, pkgmodels.ErrorResponse(cmd, apiErr.Error())))
			return true
		}
		fields := append(connFields(c), zap.String("cmd", cmd), zap.Error(err))
		if apiErr == nil {
			r.log.Error("command failed", fields...)
		} else {
			r.log.Info("dropping connection", fields...)
		}
		return false
	}
	if data != nil {
		c.Send(r.shape(scope, pkgmodels.SuccessResponse(cmd, data)))
	}
	return true
}

func (r *Router[S]) invoke(h HandlerFunc[S], scope S, c *Connection, msg models.Inbound, cmd string) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s handler: %v", cmd, p)
		}
	}()
	return h(scope, c, msg)
}

func (r *Router[S]) shape(scope S, resp pkgmodels.ApiResponse) pkgmodels.ApiResponse {
	if r.decorate == nil {
		return resp
	}
	return r.decorate(scope, resp)
}

func connFields(c *Connection) []zap.Field {
	if c == nil {
		return nil
	}
	fields := []zap.Field{zap.Uint64("conn", uint64(c.id))}
	if id := c.IdentityID(); id != "" {
		fields = append(fields, zap.String("player", id))
	}
	if c.lobby != 0 {
		fields = append(fields, zap.Int("lobby", c.lobby))
	}
	return fields
}
