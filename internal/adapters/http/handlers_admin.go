package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/betomay/papertoplan/internal/core/domain"
)

func (rt *Router) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rt.sessions.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// PINs never leave the server.
	type userView struct {
		Username  string    `json:"username"`
		CreatedAt time.Time `json:"created_at"`
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{Username: u.Username, CreatedAt: u.CreatedAt})
	}
	writeJSON(w, http.StatusOK, views)
}

func (rt *Router) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		PIN      string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.PIN = strings.TrimSpace(req.PIN)
	if req.Username == "" || req.PIN == "" {
		writeError(w, http.StatusBadRequest, "username and pin are required")
		return
	}

	user := &domain.User{
		Username:  req.Username,
		PIN:       req.PIN,
		CreatedAt: time.Now().UTC(),
	}
	if err := rt.sessions.CreateUser(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": user.Username})
}

func (rt *Router) deleteUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if username == usernameFromContext(r.Context()) {
		writeError(w, http.StatusBadRequest, "cannot delete the authenticated user")
		return
	}

	if err := rt.sessions.DeleteUser(r.Context(), username); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (rt *Router) getConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := rt.settings.Get(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (rt *Router) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req domain.AISettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Host) == "" || strings.TrimSpace(req.LogicModel) == "" || strings.TrimSpace(req.VisionModel) == "" {
		writeError(w, http.StatusBadRequest, "host, logic_model and vision_model are required")
		return
	}

	if err := rt.settings.Update(r.Context(), req); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// testConfig probes the configured inference host. Settings changes take
// effect on worker restart; this only reports reachability.
func (rt *Router) testConfig(w http.ResponseWriter, r *http.Request) {
	if rt.pinger == nil {
		writeError(w, http.StatusServiceUnavailable, "inference client is not configured")
		return
	}
	if err := rt.pinger.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"reachable": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reachable": true})
}
