package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"savequest/internal/auth"
	"savequest/internal/badge"
	"savequest/internal/circle"
	"savequest/internal/gamify"
	"savequest/internal/ledger"
	"savequest/internal/notification"
	"savequest/internal/progression"
	"savequest/internal/telemetry"
	"savequest/internal/tips"
)

// App holds everything the handlers depend on. This makes the wiring
// explicit instead of hiding it in globals.
type App struct {
	Engine   *gamify.Engine
	Circles  *circle.Service
	Auth     *auth.Handler
	Notes    notification.Repository
	Progress progression.Repository
	Badges   *badge.Catalog
	Tips     []tips.Tip
	Events   telemetry.Repository

	BootTime time.Time
}

type API struct {
	App *App
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "savequest",
		"uptime":  time.Since(a.App.BootTime).Round(time.Second).String(),
	})
}

// --- admin ---

func (a *API) adminStats(w http.ResponseWriter, r *http.Request) {
	since := a.App.BootTime
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}
	events, err := a.App.Events.GetEvents(since, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load events")
		return
	}
	stats, err := telemetry.CalculateStats(events, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not summarize events")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) resetStats(w http.ResponseWriter, r *http.Request) {
	if err := a.App.Events.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "could not clear events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- transactions ---

type transactionRequest struct {
	Flow     string `json:"flow"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
	Date     string `json:"date,omitempty"`
}

func (a *API) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !readJSON(w, r, &req) {
		return
	}
	flow := ledger.Flow(req.Flow)
	if flow != ledger.FlowIncome && flow != ledger.FlowExpense {
		writeError(w, http.StatusBadRequest, "flow must be income or expense")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative number")
		return
	}
	if req.Date != "" {
		if _, err := time.Parse(ledger.DateLayout, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	tx, err := a.App.Engine.RecordTransaction(r.Context(), ledger.TransactionRecord{
		UserID:   auth.CurrentUserID(r.Context()),
		Flow:     flow,
		Category: req.Category,
		Amount:   amount,
		Note:     req.Note,
		Date:     req.Date,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not record transaction")
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.App.Engine.Ledger.Transactions(r.Context(), auth.CurrentUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// --- goals ---

type goalRequest struct {
	Title    string `json:"title"`
	Target   string `json:"target"`
	Deadline string `json:"deadline,omitempty"` // RFC3339
}

func (a *API) createGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	target, err := decimal.NewFromString(req.Target)
	if err != nil || target.IsNegative() || target.IsZero() {
		writeError(w, http.StatusBadRequest, "target must be a positive number")
		return
	}
	g := ledger.Goal{
		UserID: auth.CurrentUserID(r.Context()),
		Title:  req.Title,
		Target: target,
	}
	if req.Deadline != "" {
		d, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "deadline must be RFC3339")
			return
		}
		g.Deadline = &d
	}
	saved, err := a.App.Engine.CreateGoal(r.Context(), g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create goal")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (a *API) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := a.App.Engine.Ledger.Goals(r.Context(), auth.CurrentUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load goals")
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

type contributeRequest struct {
	Amount string `json:"amount"`
}

func (a *API) contributeToGoal(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if !readJSON(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		writeError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}
	g, err := a.App.Engine.ContributeToGoal(r.Context(),
		auth.CurrentUserID(r.Context()), mux.Vars(r)["id"], amount)
	if errors.Is(err, ledger.ErrGoalNotFound) {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not contribute")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- daily tasks ---

func (a *API) listDays(w http.ResponseWriter, r *http.Request) {
	days, current, err := a.App.Engine.Days(r.Context(), auth.CurrentUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load daily tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currentDay": current,
		"days":       days,
	})
}

func (a *API) completeTask(w http.ResponseWriter, r *http.Request) {
	res, err := a.App.Engine.CompleteTask(r.Context(),
		auth.CurrentUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		// Store failure: not completed, user retries by re-triggering.
		writeJSON(w, http.StatusBadGateway, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) cancelTask(w http.ResponseWriter, r *http.Request) {
	out, err := a.App.Engine.CancelTask(r.Context(),
		auth.CurrentUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"outcome": out})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": out})
}

// --- progress & badges ---

func (a *API) getProgress(w http.ResponseWriter, r *http.Request) {
	p, err := a.App.Progress.Get(r.Context(), auth.CurrentUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"xp":               p.XP,
		"level":            p.Level(),
		"streak":           p.Streak,
		"lastActivityDate": p.LastActivityDate,
		"badges":           p.Badges,
	})
}

func (a *API) listBadges(w http.ResponseWriter, r *http.Request) {
	p, err := a.App.Progress.Get(r.Context(), auth.CurrentUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load badges")
		return
	}
	owned := p.OwnedSet()
	type badgeView struct {
		badge.Badge
		Owned bool `json:"owned"`
	}
	out := make([]badgeView, 0)
	for _, b := range a.App.Badges.All() {
		out = append(out, badgeView{Badge: b, Owned: owned[b.ID]})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- notifications ---

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := a.App.Notes.ListByUser(r.Context(), auth.CurrentUserID(r.Context()), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load notifications")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (a *API) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := a.App.Notes.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, "could not update notification")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- tips ---

func (a *API) listTips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.App.Tips)
}

func (a *API) readTip(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := tips.Find(a.App.Tips, id); !ok {
		writeError(w, http.StatusNotFound, "tip not found")
		return
	}
	if err := a.App.Engine.ReadTip(r.Context(), auth.CurrentUserID(r.Context()), id); err != nil {
		writeError(w, http.StatusInternalServerError, "could not record tip read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- circles ---

type createCircleRequest struct {
	Name   string `json:"name"`
	Target string `json:"target"`
}

func (a *API) createCircle(w http.ResponseWriter, r *http.Request) {
	var req createCircleRequest
	if !readJSON(w, r, &req) {
		return
	}
	target, err := decimal.NewFromString(req.Target)
	if err != nil || !target.IsPositive() {
		writeError(w, http.StatusBadRequest, "target must be a positive number")
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	c, err := a.App.Circles.Create(r.Context(), req.Name, target, id.UserID, id.DisplayName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create circle")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type joinCircleRequest struct {
	InviteCode string `json:"inviteCode"`
}

func (a *API) joinCircle(w http.ResponseWriter, r *http.Request) {
	var req joinCircleRequest
	if !readJSON(w, r, &req) {
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	c, err := a.App.Circles.Join(r.Context(), req.InviteCode, id.UserID, id.DisplayName)
	switch {
	case errors.Is(err, circle.ErrNotFound):
		writeError(w, http.StatusNotFound, "no circle with that invite code")
		return
	case errors.Is(err, circle.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "already a member")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "could not join circle")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) listCircles(w http.ResponseWriter, r *http.Request) {
	cs, err := a.App.Circles.ListForUser(r.Context(), auth.CurrentUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load circles")
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (a *API) getCircle(w http.ResponseWriter, r *http.Request) {
	circleID := mux.Vars(r)["id"]
	c, err := a.App.Circles.Get(r.Context(), circleID)
	if errors.Is(err, circle.ErrNotFound) {
		writeError(w, http.StatusNotFound, "circle not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load circle")
		return
	}
	top, err := a.App.Circles.Top(r.Context(), circleID, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load leaderboard")
		return
	}
	activity, err := a.App.Circles.RecentActivity(r.Context(), circleID, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load activity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"circle":      c,
		"progressPct": c.ProgressPct(),
		"leaderboard": top,
		"activity":    activity,
	})
}

func (a *API) contributeToCircle(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if !readJSON(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}
	c, err := a.App.Circles.Contribute(r.Context(), mux.Vars(r)["id"],
		auth.CurrentUserID(r.Context()), amount)
	switch {
	case errors.Is(err, circle.ErrNotFound):
		writeError(w, http.StatusNotFound, "circle not found")
		return
	case errors.Is(err, circle.ErrNotMember):
		writeError(w, http.StatusForbidden, "not a member of this circle")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "could not contribute")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
