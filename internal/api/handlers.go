// Package api exposes the gateway's HTTP surface: step submission,
// gate decisions, policy resolution and ingestion, and evidence chain
// export/verification.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gavelhq/gavel/internal/auth"
	"github.com/gavelhq/gavel/internal/engine"
	"github.com/gavelhq/gavel/internal/evidence"
	"github.com/gavelhq/gavel/internal/gate"
	"github.com/gavelhq/gavel/internal/policy"
	"github.com/gavelhq/gavel/pkg/types"
)

type Handler struct {
	Auth    auth.Authenticator
	Engine  *engine.Engine
	Library *policy.Library
	Ledger  *evidence.Ledger
	Logger  *zap.Logger
}

func (h *Handler) ExecuteStep(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}

	var req engine.StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.WorkflowID == "" || req.StepID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "workflow_id and step_id are required"})
		return
	}

	result, err := h.Engine.ExecuteStep(r.Context(), req)
	if err != nil {
		if errors.Is(err, engine.ErrNoPolicy) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, engine.ErrStepPending) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		h.Logger.Error("step execution failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) DecideGate(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Auth.Authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	var input types.GateDecisionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	// The authenticated operator is the actor of record, regardless of
	// what the request body claims.
	input.ActorIdentity = claims.Actor

	g, outcome, err := h.Engine.Decide(input)
	switch {
	case errors.Is(err, gate.ErrUnknownGate):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, gate.ErrGateResolved):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, gate.ErrGateNotPending), errors.Is(err, gate.ErrInvalidDecision):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.Logger.Error("gate decision failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"gate": g, "outcome": outcome})
}

func (h *Handler) ExportChain(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}

	chainID := chi.URLParam(r, "chainID")
	export, err := h.Ledger.Export(chainID)
	if err != nil {
		if errors.Is(err, evidence.ErrUnknownChain) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}

	chainID := chi.URLParam(r, "chainID")
	report, err := h.Ledger.VerifyChain(chainID)
	if err != nil {
		if errors.Is(err, evidence.ErrUnknownChain) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ResolvePolicies(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}

	q := policy.Query{
		WorkerType:    r.URL.Query().Get("worker_type"),
		Domain:        r.URL.Query().Get("domain"),
		ControlFamily: r.URL.Query().Get("control_family"),
		MAI:           policy.MAILevel(r.URL.Query().Get("mai")),
		Risk:          policy.RiskLevel(r.URL.Query().Get("risk")),
	}

	resolved := h.Library.Resolve(q)
	if r.URL.Query().Get("effective") == "true" {
		resolved = h.Library.ResolveEffective(q)
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": resolved, "count": len(resolved)})
}

type ingestRequest struct {
	PackID   string          `json:"pack_id"`
	Policies []policy.Policy `json:"policies"`
}

func (h *Handler) IngestPolicies(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	report, err := h.Library.Ingest(req.PackID, req.Policies)
	if err != nil {
		if errors.Is(err, policy.ErrUnknownPack) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ensureAuth(w http.ResponseWriter, r *http.Request) bool {
	_, err := h.Auth.Authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
