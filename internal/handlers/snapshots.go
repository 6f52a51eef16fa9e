package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/puzzle-engine/pkg/queue"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
)

// VariableChange sets one tracked variable
type VariableChange struct {
	EntityID string          `json:"entityId"`
	Variable string          `json:"variable"`
	Value    *snapshot.Value `json:"value"`
}

type PatchSnapshotRequest struct {
	Changes []VariableChange `json:"changes"`
}

type SnapshotUpdateResponse struct {
	Scene     string `json:"scene"`
	Variables int    `json:"variables"`
	Queued    bool   `json:"queued"`
	RequestID string `json:"requestId,omitempty"`
}

type SnapshotHandler struct {
	storage    storage.Storage
	dispatcher *Dispatcher
	policy     rules.Policy
	logger     *slog.Logger
}

func NewSnapshotHandler(storage storage.Storage, dispatcher *Dispatcher, policy rules.Policy, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		storage:    storage,
		dispatcher: dispatcher,
		policy:     policy,
		logger:     logger,
	}
}

// ServeHTTP handles scene snapshots
// Routes:
// GET   /v1/snapshots/{scene} - Capture the scene's variables
// PUT   /v1/snapshots/{scene} - Replace the scene's variables
// PATCH /v1/snapshots/{scene} - Set individual variables
// Writes enqueue a scene_changed trigger when a worker queue is configured.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/v1/snapshots")
	if len(parts) != 1 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/snapshots/{scene}")
		return
	}
	scene := parts[0]

	switch r.Method {
	case http.MethodGet:
		h.handleRead(w, r, scene)
	case http.MethodPut:
		h.handleReplace(w, r, scene)
	case http.MethodPatch:
		h.handlePatch(w, r, scene)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, PUT, PATCH")
	}
}

func (h *SnapshotHandler) handleRead(w http.ResponseWriter, r *http.Request, scene string) {
	snap, err := h.storage.LoadSnapshot(r.Context(), scene)
	if err != nil {
		h.logger.Error("Failed to load snapshot", "scene", scene, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load snapshot")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snap)
}

func (h *SnapshotHandler) handleReplace(w http.ResponseWriter, r *http.Request, scene string) {
	var snap snapshot.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		h.logger.Warn("Invalid snapshot body", "scene", scene, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid snapshot: "+err.Error())
		return
	}
	if err := h.storage.SaveSnapshot(r.Context(), scene, &snap); err != nil {
		h.logger.Error("Failed to save snapshot", "scene", scene, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save snapshot")
		return
	}
	h.respondChanged(w, r, scene, snap.Len())
}

func (h *SnapshotHandler) handlePatch(w http.ResponseWriter, r *http.Request, scene string) {
	var req PatchSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Changes) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "At least one change is required")
		return
	}
	for i, c := range req.Changes {
		if c.EntityID == "" || c.Variable == "" {
			writeError(w, h.logger, http.StatusBadRequest, "Each change needs entityId and variable")
			return
		}
		if c.Value == nil {
			h.logger.Warn("Change without value", "scene", scene, "index", i)
			writeError(w, h.logger, http.StatusBadRequest, "Each change needs a value")
			return
		}
	}

	changes := make([]snapshot.Observation, 0, len(req.Changes))
	for _, c := range req.Changes {
		changes = append(changes, snapshot.Observation{EntityID: c.EntityID, Variable: c.Variable, Value: *c.Value})
	}
	if err := h.storage.SetVariables(r.Context(), scene, changes); err != nil {
		h.logger.Error("Failed to set variables", "scene", scene, "changes", len(changes), "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to set variables")
		return
	}
	h.respondChanged(w, r, scene, len(req.Changes))
}

func (h *SnapshotHandler) respondChanged(w http.ResponseWriter, r *http.Request, scene string, variables int) {
	resp := SnapshotUpdateResponse{Scene: scene, Variables: variables}

	trigger := queue.NewSceneChanged(scene, h.policy)
	queued, err := h.dispatcher.Dispatch(r.Context(), trigger)
	if err != nil {
		// the write itself succeeded
		h.logger.Error("Failed to enqueue scene trigger", "scene", scene, "error", err)
	}
	if queued {
		resp.Queued = true
		resp.RequestID = trigger.RequestID
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
