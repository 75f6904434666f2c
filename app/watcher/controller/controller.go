package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/idena-watch/flipwatch/app/watcher/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	r.HandleFunc("/epochs", c.HandleEpochs).Methods("GET")
	r.HandleFunc("/epochs/{epoch}/report", c.HandleEpochReport).Methods("GET")
	r.HandleFunc("/epochs/{epoch}/leaderboard", c.HandleLeaderboard).Methods("GET")
	r.HandleFunc("/window/report", c.HandleWindowReport).Methods("GET")

	return r
}
