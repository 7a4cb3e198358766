package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mapleleafu/cardarena/arena-backend/middleware"
	"github.com/mapleleafu/cardarena/arena-backend/models"
)

func NewRouter(api *API) *mux.Router {
	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/ws", WsHandler(api.Server, api.Log))
	r.HandleFunc("/api/admin/login", api.AdminLogin).Methods(http.MethodPost)

	// Operator routes
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(middleware.JWTValidationMiddleware(api.Secret, models.RoleOperator))
	admin.HandleFunc("/lobbies", api.ListLobbies).Methods(http.MethodGet)
	admin.HandleFunc("/lobbies/{number:[0-9]+}/stop", api.StopLobby).Methods(http.MethodPost)
	admin.HandleFunc("/kick/{id}", api.KickPlayer).Methods(http.MethodPost)
	admin.HandleFunc("/ban/{id}", api.BanPlayer).Methods(http.MethodPost)
	admin.HandleFunc("/ban/{id}", api.UnbanPlayer).Methods(http.MethodDelete)
	admin.HandleFunc("/whitelist/{id}", api.WhitelistPlayer).Methods(http.MethodPost)

	// Secured routes
	secured := r.PathPrefix("/api/runs").Subrouter()
	secured.Use(middleware.JWTValidationMiddleware(api.Secret, ""))
	secured.HandleFunc("/player/{id}", api.FetchPlayerRuns).Methods(http.MethodGet)
	secured.HandleFunc("/{runID}/actions", api.FetchRunActions).Methods(http.MethodGet)
	return r
}
