package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ascentapp/ascent/backend/server/auth"
	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"github.com/ascentapp/ascent/backend/tracker"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// API bundles the dependencies the HTTP handlers need.
type API struct {
	store   storage.StorageInterface
	tracker *tracker.Tracker
}

// registerRoutes mounts every endpoint on the router. Auth routes are
// public; everything else expects a Bearer token.
func (a *API) registerRoutes(r *mux.Router) {
	r.HandleFunc("/auth/signup", a.handleSignUp).Methods("POST")
	r.HandleFunc("/auth/signin", a.handleSignIn).Methods("POST")
	r.HandleFunc("/auth/refresh", a.handleRefresh).Methods("POST")
	r.HandleFunc("/auth/account", a.handleDeleteAccount).Methods("DELETE")

	r.HandleFunc("/habits", a.handleListHabits).Methods("GET")
	r.HandleFunc("/habits", a.handleCreateHabit).Methods("POST")
	r.HandleFunc("/habits/{id}/toggle", a.handleToggleHabit).Methods("POST")
	r.HandleFunc("/habits/{id}/history", a.handleHabitHistory).Methods("GET")
	r.HandleFunc("/habits/{id}", a.handleDeleteHabit).Methods("DELETE")

	r.HandleFunc("/rules", a.handleListRules).Methods("GET")
	r.HandleFunc("/rules", a.handleCreateRule).Methods("POST")
	r.HandleFunc("/rules/{id}/toggle", a.handleToggleRule).Methods("POST")
	r.HandleFunc("/rules/{id}/break", a.handleBreakRule).Methods("POST")
	r.HandleFunc("/rules/{id}", a.handleDeleteRule).Methods("DELETE")

	r.HandleFunc("/challenges", a.handleListChallenges).Methods("GET")
	r.HandleFunc("/challenges", a.handleCreateChallenge).Methods("POST")
	r.HandleFunc("/challenges/{id}/days/{day}", a.handleCheckOffDay).Methods("PATCH")
	r.HandleFunc("/challenges/{id}", a.handleDeleteChallenge).Methods("DELETE")

	r.HandleFunc("/summary", a.handleSummary).Methods("GET")
}

// writeJSON serializes v to the response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Println("error encoding response:", err)
		}
	}
}

// errorResponse is the JSON body for every error the API returns.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the tracker's error types onto HTTP status codes and
// writes the error message to the client verbatim.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *tracker.ValidationError
		notFoundErr   *tracker.NotFoundError
		forbiddenErr  *tracker.ForbiddenError
		cooldownErr   *tracker.CooldownActiveError
		invalidDayErr *tracker.InvalidDayError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &forbiddenErr):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.As(err, &cooldownErr):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	case errors.As(err, &invalidDayErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		log.Println("internal error:", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// authedUser extracts the authenticated user's id from the request context.
// It writes a 401 and returns false when the request carries no valid token.
func authedUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, ok := r.Context().Value(userIDKey).(string)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return primitive.NilObjectID, false
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return primitive.NilObjectID, false
	}
	return objectID, true
}

// pathID parses the {id} route variable as an ObjectID. It writes a 404 and
// returns false when the id is malformed.
func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// decodeBody decodes the request body into v. It writes a 400 and returns
// false when the body is not valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Timezone string `json:"timezone"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	token, refreshToken, err := auth.SignUp(r.Context(), req.Username, req.Email, req.Password, req.Timezone)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, RefreshToken: refreshToken})
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	token, refreshToken, err := auth.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, RefreshToken: refreshToken})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	token, refreshToken, err := auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, RefreshToken: refreshToken})
}

func (a *API) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	if _, err := auth.DeleteUser(r.Context(), userID.Hex()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListHabits(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	habits, err := a.tracker.ListHabits(r.Context(), userID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (a *API) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title        string `json:"title"`
		Category     string `json:"category"`
		ReminderHour *int   `json:"reminderHour"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	habit, err := a.tracker.CreateHabit(r.Context(), userID, req.Title, req.Category, req.ReminderHour, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

func (a *API) handleToggleHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	habitID, ok := pathID(w, r)
	if !ok {
		return
	}
	habit, err := a.tracker.ToggleHabit(r.Context(), userID, habitID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (a *API) handleHabitHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	habitID, ok := pathID(w, r)
	if !ok {
		return
	}
	history, err := a.tracker.HabitHistory(r.Context(), userID, habitID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	habitID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.tracker.DeleteHabit(r.Context(), userID, habitID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	rules, err := a.tracker.ListRules(r.Context(), userID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title    string `json:"title"`
		Category string `json:"category"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rule, err := a.tracker.CreateRule(r.Context(), userID, req.Title, req.Category, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (a *API) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	ruleID, ok := pathID(w, r)
	if !ok {
		return
	}
	rule, err := a.tracker.ToggleRule(r.Context(), userID, ruleID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (a *API) handleBreakRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	ruleID, ok := pathID(w, r)
	if !ok {
		return
	}
	rule, err := a.tracker.BreakRule(r.Context(), userID, ruleID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	ruleID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.tracker.DeleteRule(r.Context(), userID, ruleID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	challenges, err := a.tracker.ListChallenges(r.Context(), userID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (a *API) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title     string     `json:"title"`
		Duration  int        `json:"duration"`
		StartDate *time.Time `json:"startDate"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	now := time.Now()
	startDate := now
	if req.StartDate != nil {
		startDate = *req.StartDate
	}
	challenge, err := a.tracker.CreateChallenge(r.Context(), userID, req.Title, req.Duration, startDate, now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, challenge)
}

func (a *API) handleCheckOffDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	challengeID, ok := pathID(w, r)
	if !ok {
		return
	}
	dayNumber, err := strconv.Atoi(mux.Vars(r)["day"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "day number must be an integer"})
		return
	}
	var req struct {
		Completed bool `json:"completed"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	challenge, err := a.tracker.CheckOffDay(r.Context(), userID, challengeID, dayNumber, req.Completed, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (a *API) handleDeleteChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	challengeID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.tracker.DeleteChallenge(r.Context(), userID, challengeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	summary, err := a.tracker.Summary(r.Context(), userID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
