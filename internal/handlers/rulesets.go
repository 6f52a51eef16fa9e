package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
)

// EvaluateRequest is the body of evaluate, explain and validate. An inline
// snapshot wins over the stored scene.
type EvaluateRequest struct {
	Scene    string             `json:"scene,omitempty"`
	Snapshot *snapshot.Snapshot `json:"snapshot,omitempty"`
	Policy   string             `json:"policy,omitempty"`
}

type EvaluateResponse struct {
	RuleSetID uuid.UUID     `json:"ruleSetId"`
	Policy    rules.Policy  `json:"policy"`
	Matches   []rules.Match `json:"matches"`
}

type ExplainResponse struct {
	RuleSetID uuid.UUID           `json:"ruleSetId"`
	Branches  []rules.BranchTrace `json:"branches"`
}

type RuleSetListResponse struct {
	RuleSets []storage.RuleSetSummary `json:"ruleSets"`
	Files    map[string]string        `json:"files"`
}

type RuleSetHandler struct {
	storage       storage.Storage
	defaultPolicy rules.Policy
	logger        *slog.Logger
}

func NewRuleSetHandler(storage storage.Storage, defaultPolicy rules.Policy, logger *slog.Logger) *RuleSetHandler {
	if defaultPolicy == "" {
		defaultPolicy = rules.PolicyAll
	}
	return &RuleSetHandler{
		storage:       storage,
		defaultPolicy: defaultPolicy,
		logger:        logger,
	}
}

// ServeHTTP handles rule set authoring and evaluation
// Routes:
// GET    /v1/rulesets                   - List stored rule sets and shipped files
// POST   /v1/rulesets                   - Create a rule set
// POST   /v1/rulesets/files/{filename}  - Import a shipped rule set file
// GET    /v1/rulesets/{id}              - Read a rule set
// PUT    /v1/rulesets/{id}              - Replace a rule set
// DELETE /v1/rulesets/{id}              - Delete a rule set
// POST   /v1/rulesets/{id}/evaluate     - Evaluate against a snapshot
// POST   /v1/rulesets/{id}/explain      - Trace the evaluation
// POST   /v1/rulesets/{id}/validate     - Authoring checks
func (h *RuleSetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/v1/rulesets")

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, POST")
		}
		return
	}

	if parts[0] == "files" {
		if len(parts) != 2 || r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusBadRequest, "Expected POST /v1/rulesets/files/{filename}")
			return
		}
		h.handleImport(w, r, parts[1])
		return
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid rule set ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid rule set ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, id)
		case http.MethodPut:
			h.handleReplace(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, PUT, DELETE")
		}
		return
	}

	if len(parts) != 2 {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	switch parts[1] {
	case "evaluate":
		h.handleEvaluate(w, r, id)
	case "explain":
		h.handleExplain(w, r, id)
	case "validate":
		h.handleValidate(w, r, id)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *RuleSetHandler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.storage.ListRuleSets(r.Context())
	if err != nil {
		h.logger.Error("Failed to list rule sets", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list rule sets")
		return
	}
	files, err := h.storage.ListRuleSetFiles(r.Context())
	if err != nil {
		h.logger.Error("Failed to list rule set files", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list rule set files")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, RuleSetListResponse{RuleSets: summaries, Files: files})
}

func (h *RuleSetHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rs rules.RuleSet
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		h.logger.Warn("Invalid rule set body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid rule set: "+err.Error())
		return
	}
	// server assigns identity
	rs.ID = uuid.New()
	h.save(w, r, &rs, http.StatusCreated)
}

func (h *RuleSetHandler) handleImport(w http.ResponseWriter, r *http.Request, filename string) {
	rs, err := h.storage.GetRuleSetFile(r.Context(), filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Rule set file not found")
			return
		}
		h.logger.Warn("Failed to load rule set file", "filename", filename, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Failed to load rule set file")
		return
	}
	rs.ID = uuid.New()
	h.save(w, r, rs, http.StatusCreated)
}

func (h *RuleSetHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	rs, ok := h.load(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rs)
}

func (h *RuleSetHandler) handleReplace(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if _, ok := h.load(w, r, id); !ok {
		return
	}
	var rs rules.RuleSet
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid rule set: "+err.Error())
		return
	}
	rs.ID = id
	h.save(w, r, &rs, http.StatusOK)
}

func (h *RuleSetHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.storage.DeleteRuleSet(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete rule set", "uuid", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete rule set")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RuleSetHandler) handleEvaluate(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	req, ok := h.decodeEvaluate(w, r)
	if !ok {
		return
	}
	policy, err := h.policy(req.Policy)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	rs, ok := h.load(w, r, id)
	if !ok {
		return
	}
	snap, ok := h.snapshotFor(w, r, req)
	if !ok {
		return
	}

	matches, err := rules.Evaluate(rs, snap)
	if err != nil {
		h.logger.Error("Evaluation failed", "uuid", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Evaluation failed")
		return
	}
	matches = rules.ApplyPolicy(matches, policy)

	h.logger.Debug("Rule set evaluated", "uuid", id, "scene", req.Scene, "matches", len(matches))
	writeJSON(w, h.logger, http.StatusOK, EvaluateResponse{RuleSetID: id, Policy: policy, Matches: matches})
}

func (h *RuleSetHandler) handleExplain(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	req, ok := h.decodeEvaluate(w, r)
	if !ok {
		return
	}
	rs, ok := h.load(w, r, id)
	if !ok {
		return
	}
	snap, ok := h.snapshotFor(w, r, req)
	if !ok {
		return
	}

	traces, err := rules.Explain(rs, snap)
	if err != nil {
		h.logger.Error("Explain failed", "uuid", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Explain failed")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ExplainResponse{RuleSetID: id, Branches: traces})
}

// handleValidate checks references against a snapshot only when the caller
// names one
func (h *RuleSetHandler) handleValidate(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	req, ok := h.decodeEvaluate(w, r)
	if !ok {
		return
	}
	rs, ok := h.load(w, r, id)
	if !ok {
		return
	}

	var snap *snapshot.Snapshot
	if req.Snapshot != nil || req.Scene != "" {
		if snap, ok = h.snapshotFor(w, r, req); !ok {
			return
		}
	}
	writeJSON(w, h.logger, http.StatusOK, rules.ValidateAgainst(rs, snap))
}

func (h *RuleSetHandler) decodeEvaluate(w http.ResponseWriter, r *http.Request) (EvaluateRequest, bool) {
	var req EvaluateRequest
	if r.Body == nil {
		return req, true
	}
	// an empty body is an empty request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid evaluate body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}
	return req, true
}

func (h *RuleSetHandler) policy(raw string) (rules.Policy, error) {
	if raw == "" {
		return h.defaultPolicy, nil
	}
	return rules.ParsePolicy(raw)
}

func (h *RuleSetHandler) snapshotFor(w http.ResponseWriter, r *http.Request, req EvaluateRequest) (*snapshot.Snapshot, bool) {
	if req.Snapshot != nil {
		return req.Snapshot, true
	}
	if req.Scene == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Either scene or snapshot is required")
		return nil, false
	}
	snap, err := h.storage.LoadSnapshot(r.Context(), req.Scene)
	if err != nil {
		h.logger.Error("Failed to capture scene", "scene", req.Scene, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to capture scene snapshot")
		return nil, false
	}
	return snap, true
}

func (h *RuleSetHandler) load(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*rules.RuleSet, bool) {
	rs, err := h.storage.LoadRuleSet(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load rule set", "uuid", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load rule set")
		return nil, false
	}
	if rs == nil {
		writeError(w, h.logger, http.StatusNotFound, "Rule set not found")
		return nil, false
	}
	return rs, true
}

func (h *RuleSetHandler) save(w http.ResponseWriter, r *http.Request, rs *rules.RuleSet, status int) {
	if err := h.storage.SaveRuleSet(context.WithoutCancel(r.Context()), rs); err != nil {
		h.logger.Error("Failed to save rule set", "uuid", rs.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save rule set")
		return
	}
	h.logger.Info("Rule set saved", "uuid", rs.ID, "name", rs.Name, "branches", len(rs.Branches))
	writeJSON(w, h.logger, status, rs)
}
