package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brunobiangulo/acctplan"
)

type handler struct {
	engine acctplan.Engine
}

func newHandler(e acctplan.Engine) *handler {
	return &handler{engine: e}
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

// POST /research
// Kicks off (or continues) research on a company, or answers a
// conflict-resolution follow-up — the agent controller's intent
// classifier decides which from the message text and session state.
func (h *handler) handleResearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SessionID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "session_id and user_id are required")
		return
	}

	resp, err := h.engine.Process(ctx, req.Message, req.SessionID, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "research failed")
		slog.Error("research error", "session_id", req.SessionID, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /sections/{key}
// Regenerates or edits one named section of the session's existing
// plan. key is one of the acctplan.SectionKey values (e.g.
// "market_summary", "financial_summary"); the optional JSON body
// message carries extra instructions, such as a financial fact to add.
func (h *handler) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "section key is required")
		return
	}

	var req turnRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // message is optional for a bare regenerate; session_id and user_id are not
	if req.SessionID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "session_id and user_id are required")
		return
	}

	message := fmt.Sprintf("update the %s", strings.ReplaceAll(key, "_", " "))
	if req.Message != "" {
		message = fmt.Sprintf("%s: %s", message, req.Message)
	}

	resp, err := h.engine.Process(ctx, message, req.SessionID, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "section update failed")
		slog.Error("section update error", "session_id", req.SessionID, "key", key, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /plans/{id}
func (h *handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "plan id is required")
		return
	}

	plan, err := h.engine.Plan(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load plan")
		slog.Error("get plan error", "id", id, "error", err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// GET /plans?user_id=...
func (h *handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	plans, err := h.engine.Plans(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list plans")
		slog.Error("list plans error", "user_id", userID, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
