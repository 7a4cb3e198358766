package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
	"github.com/mapleleafu/cardarena/arena-backend/session"
	"github.com/mapleleafu/cardarena/arena-backend/utils"
)

const operatorTokenTTL = 12 * time.Hour

type RunReader interface {
	RunsByPlayer(ctx context.Context, id string) ([]models.Run, error)
}

type SessionReader interface {
	SessionByRun(ctx context.Context, runID string) (models.GameSession, error)
}

// API serves the operator console and the run archive over HTTP. Runs and
// Sessions may be nil when the archive is disabled.
type API struct {
	Server            *session.Server
	Runs              RunReader
	Sessions          SessionReader
	Secret            []byte
	AdminPasswordHash string
	Log               *zap.Logger
}

func (a *API) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.HandleError(w, "login", responses.BadRequestError{Msg: "Invalid request."})
		return
	}
	if err := utils.Validator().Struct(req); err != nil {
		utils.HandleError(w, "login", responses.BadRequestError{Msg: "Password is required."})
		return
	}
	if len(a.Secret) == 0 || !CheckOperatorPassword(a.AdminPasswordHash, req.Password) {
		a.Log.Warn("operator login rejected", zap.String("remote", r.RemoteAddr))
		utils.HandleError(w, "login", responses.UnauthorizedError{Msg: "You are not authorized to access this resource."})
		return
	}

	token, err := IssueToken(a.Secret, "operator", "operator", models.RoleOperator, operatorTokenTTL)
	if err != nil {
		a.Log.Error("failed to sign operator token", zap.Error(err))
		utils.HandleError(w, "login", responses.InternalServerError{Msg: "Failed to generate token."})
		return
	}
	a.Log.Info("operator logged in", zap.String("remote", r.RemoteAddr))
	utils.HandleSuccess(w, "login", map[string]string{"access_token": token})
}

func (a *API) ListLobbies(w http.ResponseWriter, r *http.Request) {
	utils.HandleSuccess(w, "lobbies", map[string]interface{}{
		"lobbies":     a.Server.Lobbies(),
		"connections": a.Server.ConnectionCount(),
	})
}

func (a *API) KickPlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n := a.Server.Kick(id)
	if n == 0 {
		utils.HandleError(w, "kick", responses.NotFoundError{Msg: "Player is not connected."})
		return
	}
	utils.HandleSuccess(w, "kick", map[string]interface{}{"player": id, "kicked": n})
}

func (a *API) BanPlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, err := a.Server.Ban(id)
	if err != nil {
		a.Log.Error("ban failed", zap.String("player", id), zap.Error(err))
		utils.HandleError(w, "ban", responses.InternalServerError{Msg: "Ban list cannot be edited."})
		return
	}
	utils.HandleSuccess(w, "ban", map[string]interface{}{"player": id, "kicked": n})
}

func (a *API) UnbanPlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.Server.Unban(id); err != nil {
		a.Log.Error("unban failed", zap.String("player", id), zap.Error(err))
		utils.HandleError(w, "unban", responses.InternalServerError{Msg: "Ban list cannot be edited."})
		return
	}
	utils.HandleSuccess(w, "unban", map[string]interface{}{"player": id})
}

func (a *API) WhitelistPlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.Server.Whitelist(id); err != nil {
		a.Log.Error("whitelist failed", zap.String("player", id), zap.Error(err))
		utils.HandleError(w, "whitelist", responses.InternalServerError{Msg: "Whitelist cannot be edited."})
		return
	}
	utils.HandleSuccess(w, "whitelist", map[string]interface{}{"player": id})
}

func (a *API) StopLobby(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(mux.Vars(r)["number"])
	if err != nil {
		utils.HandleError(w, "stop", responses.BadRequestError{Msg: "Invalid lobby number."})
		return
	}
	if number < 1 || number > len(a.Server.Lobbies()) {
		utils.HandleError(w, "stop", responses.NotFoundError{Msg: "Lobby not found."})
		return
	}
	if !a.Server.StopLobby(number) {
		utils.HandleError(w, "stop", responses.IllegalStateError{Msg: "No run in progress."})
		return
	}
	utils.HandleSuccess(w, "stop", map[string]interface{}{"lobby": number})
}
