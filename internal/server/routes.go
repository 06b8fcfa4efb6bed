package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouteDoc describes one endpoint for the admin listing.
type RouteDoc struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
	Summary string `json:"summary,omitempty"`
}

// NewRouter wires the full API. Everything under /api except auth endpoints
// and health requires a bearer token.
func NewRouter(app *App) *mux.Router {
	api := &API{App: app}
	var docs []RouteDoc

	r := mux.NewRouter()

	public := r.PathPrefix("/api").Subrouter()
	add := func(sub *mux.Router, method, pattern, summary string, h http.HandlerFunc) {
		docs = append(docs, RouteDoc{Method: method, Pattern: "/api" + pattern, Summary: summary})
		sub.HandleFunc(pattern, h).Methods(method)
	}

	add(public, http.MethodGet, "/healthz", "service health", api.health)
	add(public, http.MethodPost, "/auth/signup", "create an account", app.Auth.Signup)
	add(public, http.MethodPost, "/auth/login", "log in", app.Auth.Login)

	private := r.PathPrefix("/api").Subrouter()
	private.Use(app.Auth.Middleware)

	add(private, http.MethodGet, "/auth/me", "current identity", app.Auth.Me)

	add(private, http.MethodPost, "/transactions", "record a transaction", api.createTransaction)
	add(private, http.MethodGet, "/transactions", "list transactions", api.listTransactions)

	add(private, http.MethodPost, "/goals", "create a savings goal", api.createGoal)
	add(private, http.MethodGet, "/goals", "list goals", api.listGoals)
	add(private, http.MethodPost, "/goals/{id}/contribute", "add money to a goal", api.contributeToGoal)

	add(private, http.MethodGet, "/tasks/days", "curriculum with lock state", api.listDays)
	add(private, http.MethodPost, "/tasks/{id}/complete", "complete a daily task", api.completeTask)
	add(private, http.MethodPost, "/tasks/{id}/cancel", "uncheck a daily task", api.cancelTask)

	add(private, http.MethodGet, "/progress", "xp, level, streak, badges", api.getProgress)
	add(private, http.MethodGet, "/badges", "badge catalog with owned flags", api.listBadges)

	add(private, http.MethodGet, "/notifications", "recent notifications", api.listNotifications)
	add(private, http.MethodPost, "/notifications/{id}/read", "mark notification read", api.markNotificationRead)

	add(private, http.MethodGet, "/tips", "financial tips", api.listTips)
	add(private, http.MethodPost, "/tips/{id}/read", "mark a tip as read", api.readTip)

	add(private, http.MethodPost, "/circles", "create a savings circle", api.createCircle)
	add(private, http.MethodPost, "/circles/join", "join a circle by invite code", api.joinCircle)
	add(private, http.MethodGet, "/circles", "my circles", api.listCircles)
	add(private, http.MethodGet, "/circles/{id}", "circle with leaderboard and feed", api.getCircle)
	add(private, http.MethodPost, "/circles/{id}/contribute", "contribute to a circle", api.contributeToCircle)

	// Route listing and telemetry summary for tooling; handy during
	// development and what `ops stats --server` reads.
	r.HandleFunc("/_/admin/routes.json", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, docs)
	}).Methods(http.MethodGet)
	r.HandleFunc("/_/admin/stats.json", api.adminStats).Methods(http.MethodGet)
	r.HandleFunc("/_/admin/stats/reset", api.resetStats).Methods(http.MethodPost)

	return r
}
