package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/queue"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
)

type TriggerRequest struct {
	RuleSetID uuid.UUID `json:"ruleSetId"`
	Policy    string    `json:"policy,omitempty"`
}

type TriggerResponse struct {
	RequestID string            `json:"requestId"`
	Type      queue.RequestType `json:"type"`
	Scene     string            `json:"scene"`
}

type SceneBindingsResponse struct {
	Scene    string      `json:"scene"`
	RuleSets []uuid.UUID `json:"ruleSets"`
}

type SceneHandler struct {
	storage    storage.Storage
	dispatcher *Dispatcher
	policy     rules.Policy
	logger     *slog.Logger
}

func NewSceneHandler(storage storage.Storage, dispatcher *Dispatcher, policy rules.Policy, logger *slog.Logger) *SceneHandler {
	return &SceneHandler{
		storage:    storage,
		dispatcher: dispatcher,
		policy:     policy,
		logger:     logger,
	}
}

// ServeHTTP handles scene bindings and manual triggers
// Routes:
// GET    /v1/scenes/{scene}/rulesets      - List bound rule sets
// PUT    /v1/scenes/{scene}/rulesets/{id} - Bind a rule set
// DELETE /v1/scenes/{scene}/rulesets/{id} - Unbind a rule set
// POST   /v1/scenes/{scene}/trigger       - Enqueue an evaluation
func (h *SceneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/v1/scenes")
	if len(parts) < 2 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/scenes/{scene}/...")
		return
	}
	scene := parts[0]

	switch {
	case parts[1] == "trigger" && len(parts) == 2:
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleTrigger(w, r, scene)

	case parts[1] == "rulesets" && len(parts) == 2:
		if r.Method != http.MethodGet {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
			return
		}
		h.handleList(w, r, scene)

	case parts[1] == "rulesets" && len(parts) == 3:
		id, err := uuid.Parse(parts[2])
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid rule set ID format")
			return
		}
		switch r.Method {
		case http.MethodPut:
			h.handleBind(w, r, scene, id)
		case http.MethodDelete:
			h.handleUnbind(w, r, scene, id)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: PUT, DELETE")
		}

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SceneHandler) handleList(w http.ResponseWriter, r *http.Request, scene string) {
	ids, err := h.storage.SceneRuleSets(r.Context(), scene)
	if err != nil {
		h.logger.Error("Failed to list scene bindings", "scene", scene, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list scene bindings")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SceneBindingsResponse{Scene: scene, RuleSets: ids})
}

func (h *SceneHandler) handleBind(w http.ResponseWriter, r *http.Request, scene string, id uuid.UUID) {
	rs, err := h.storage.LoadRuleSet(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load rule set", "uuid", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load rule set")
		return
	}
	if rs == nil {
		writeError(w, h.logger, http.StatusNotFound, "Rule set not found")
		return
	}
	if err := h.storage.BindRuleSet(r.Context(), scene, id); err != nil {
		h.logger.Error("Failed to bind rule set", "scene", scene, "uuid", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to bind rule set")
		return
	}
	h.logger.Info("Rule set bound to scene", "scene", scene, "uuid", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SceneHandler) handleUnbind(w http.ResponseWriter, r *http.Request, scene string, id uuid.UUID) {
	if err := h.storage.UnbindRuleSet(r.Context(), scene, id); err != nil {
		h.logger.Error("Failed to unbind rule set", "scene", scene, "uuid", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to unbind rule set")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SceneHandler) handleTrigger(w http.ResponseWriter, r *http.Request, scene string) {
	var req TriggerRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	policy := h.policy
	if req.Policy != "" {
		p, err := rules.ParsePolicy(req.Policy)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		policy = p
	}

	trigger := queue.NewSceneChanged(scene, policy)
	if req.RuleSetID != uuid.Nil {
		trigger = queue.NewEvaluate(scene, req.RuleSetID, policy)
	}

	queued, err := h.dispatcher.Dispatch(r.Context(), trigger)
	if err != nil {
		h.logger.Error("Failed to enqueue trigger", "scene", scene, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to enqueue trigger")
		return
	}
	if !queued {
		writeError(w, h.logger, http.StatusServiceUnavailable, "No worker queue configured")
		return
	}

	h.logger.Info("Trigger enqueued", "scene", scene, "request_id", trigger.RequestID, "type", trigger.Type)
	writeJSON(w, h.logger, http.StatusAccepted, TriggerResponse{RequestID: trigger.RequestID, Type: trigger.Type, Scene: scene})
}
