package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/middleware"
	"github.com/mapleleafu/cardarena/arena-backend/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
	"github.com/mapleleafu/cardarena/arena-backend/repository"
	"github.com/mapleleafu/cardarena/arena-backend/utils"
)

// FetchPlayerRuns lists the archived runs of a player. Players may only read
// their own history; operators may read anyone's.
func (a *API) FetchPlayerRuns(w http.ResponseWriter, r *http.Request) {
	authInfo, ok := middleware.AuthInfo(r.Context())
	if !ok {
		utils.HandleError(w, "runs", responses.InternalServerError{Msg: "Error processing request."})
		return
	}
	if a.Runs == nil {
		utils.HandleError(w, "runs", responses.NotFoundError{Msg: "Run archive is disabled."})
		return
	}

	playerID := mux.Vars(r)["id"]
	if authInfo.Role != models.RoleOperator && authInfo.ID != playerID {
		utils.HandleError(w, "runs", responses.UnauthorizedError{Msg: "You are not authorized to access this resource."})
		return
	}

	runs, err := a.Runs.RunsByPlayer(r.Context(), playerID)
	if err != nil {
		a.Log.Error("error fetching runs", zap.String("player", playerID), zap.Error(err))
		utils.HandleError(w, "runs", responses.InternalServerError{Msg: "Failed to fetch player runs."})
		return
	}
	utils.HandleSuccess(w, "runs", runs)
}

// FetchRunActions returns the action journal of one run.
func (a *API) FetchRunActions(w http.ResponseWriter, r *http.Request) {
	authInfo, ok := middleware.AuthInfo(r.Context())
	if !ok {
		utils.HandleError(w, "run_actions", responses.InternalServerError{Msg: "Error processing request."})
		return
	}
	if a.Sessions == nil {
		utils.HandleError(w, "run_actions", responses.NotFoundError{Msg: "Run archive is disabled."})
		return
	}

	runID := mux.Vars(r)["runID"]
	if _, err := uuid.Parse(runID); err != nil {
		utils.HandleError(w, "run_actions", responses.BadRequestError{Msg: "Invalid runID format."})
		return
	}

	session, err := a.Sessions.SessionByRun(r.Context(), runID)
	if errors.Is(err, repository.ErrNotFound) {
		utils.HandleError(w, "run_actions", responses.NotFoundError{Msg: "Run not found."})
		return
	}
	if err != nil {
		a.Log.Error("error fetching run actions", zap.String("run", runID), zap.Error(err))
		utils.HandleError(w, "run_actions", responses.InternalServerError{Msg: "Error fetching run actions."})
		return
	}

	if authInfo.Role != models.RoleOperator && !playedIn(session, authInfo.ID) {
		utils.HandleError(w, "run_actions", responses.UnauthorizedError{Msg: "Player is not part of the run."})
		return
	}
	utils.HandleSuccess(w, "run_actions", session)
}

func playedIn(session models.GameSession, id string) bool {
	for _, action := range session.Actions {
		if action.PlayerID == id {
			return true
		}
	}
	return false
}
