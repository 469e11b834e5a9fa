// Package engine drives the governed pipeline: policy resolution,
// integrity checking, repair, gate evaluation and evidence sealing for
// one step at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gavelhq/gavel/internal/evidence"
	"github.com/gavelhq/gavel/internal/gate"
	"github.com/gavelhq/gavel/internal/integrity"
	"github.com/gavelhq/gavel/internal/policy"
	"github.com/gavelhq/gavel/internal/repair"
	"github.com/gavelhq/gavel/pkg/types"
)

// ErrNoPolicy means no active policy matched the step's worker type and
// domain. Ungoverned execution is refused rather than waved through.
var ErrNoPolicy = errors.New("no applicable policy for step")

// ErrStepPending means the step was resubmitted while its gate is still
// open. Accepting the resubmission would seal a second step record for
// the same (workflow, step) pair and fork the evidence chain when the
// pending decision lands.
var ErrStepPending = errors.New("step gate awaiting decision")

// StepRequest is one unit of agent output submitted for governed
// execution.
type StepRequest struct {
	WorkflowID string         `json:"workflow_id"`
	StepID     string         `json:"step_id"`
	WorkerType string         `json:"worker_type"`
	Domain     string         `json:"domain"`
	Payload    map[string]any `json:"payload"`
}

// Step outcomes.
const (
	OutcomeProceed       = "proceed"
	OutcomeAwaitingHuman = "awaiting_human"
	OutcomeRejected      = "rejected"
)

// StepResult reports one governed step.
type StepResult struct {
	WorkflowID     string         `json:"workflow_id"`
	StepID         string         `json:"step_id"`
	PolicyID       string         `json:"policy_id"`
	Outcome        string         `json:"outcome"`
	IntegrityScore int            `json:"integrity_score"`
	Repair         *repair.Result `json:"repair,omitempty"`
	Gate           gate.Gate      `json:"gate"`
	EvidencePackID string         `json:"evidence_pack_id"`
}

// Options configures the engine.
type Options struct {
	// StepTimeout bounds a whole step including every repair attempt.
	// Timeout surfaces as a failed repair and a pending gate, never as
	// silent success.
	StepTimeout time.Duration

	RepairThreshold  int
	RepairMaxRetries int
}

func (o Options) withDefaults() Options {
	if o.StepTimeout <= 0 {
		o.StepTimeout = 2 * time.Minute
	}
	return o
}

type workflowState struct {
	mu   sync.Mutex
	head string
	loop *repair.Loop
}

// Engine executes pipeline steps. Steps of one workflow are serialized
// by a per-workflow mutex; independent workflows run concurrently and
// share only the read-mostly policy library.
type Engine struct {
	opts       Options
	library    *policy.Library
	checker    *integrity.Checker
	reconciler *repair.Reconciler
	ledger     *evidence.Ledger
	gates      *gate.Manager
	metrics    *Metrics
	logger     *zap.Logger

	mu        sync.Mutex
	workflows map[string]*workflowState
}

func New(library *policy.Library, checker *integrity.Checker, reconciler *repair.Reconciler, ledger *evidence.Ledger, gates *gate.Manager, metrics *Metrics, opts Options, logger *zap.Logger) *Engine {
	return &Engine{
		opts:       opts.withDefaults(),
		library:    library,
		checker:    checker,
		reconciler: reconciler,
		ledger:     ledger,
		gates:      gates,
		metrics:    metrics,
		logger:     logger,
		workflows:  map[string]*workflowState{},
	}
}

func (e *Engine) workflow(id string) *workflowState {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.workflows[id]
	if !ok {
		wf = &workflowState{
			loop: repair.NewLoop(e.checker, e.reconciler, repair.Options{
				Threshold:  e.opts.RepairThreshold,
				MaxRetries: e.opts.RepairMaxRetries,
			}, e.logger),
		}
		e.workflows[id] = wf
	}
	return wf
}

// ExecuteStep runs one step end to end: resolve the governing policy,
// check and repair the payload, seal the step record, then evaluate the
// gate. The sealed step record precedes the gate records on the chain.
func (e *Engine) ExecuteStep(ctx context.Context, req StepRequest) (StepResult, error) {
	started := time.Now()
	wf := e.workflow(req.WorkflowID)
	wf.mu.Lock()
	defer wf.mu.Unlock()

	// A resubmission of a step with an open gate is refused before any
	// chain write happens. The eventual decision appends from the head
	// the open gate recorded; sealing another step record here would put
	// two successors on that head.
	if g, err := e.gates.Get(req.WorkflowID, req.StepID); err == nil && !gate.Terminal(g.State) {
		e.metrics.StepsTotal.WithLabelValues("pending_gate").Inc()
		return StepResult{}, fmt.Errorf("%w: %s/%s", ErrStepPending, req.WorkflowID, req.StepID)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
	defer cancel()

	governing, ok := e.governingPolicy(req)
	if !ok {
		e.metrics.StepsTotal.WithLabelValues("no_policy").Inc()
		return StepResult{}, ErrNoPolicy
	}

	check := e.checker.Check(ctx, req.Payload)
	payload := req.Payload

	var repairResult *repair.Result
	repairFailed := false
	score := check.IntegrityScore
	if !check.Resilient {
		repairStart := time.Now()
		res := wf.loop.Repair(ctx, req.Payload, check)
		e.metrics.RepairDuration.Observe(time.Since(repairStart).Seconds())
		e.metrics.RepairsTotal.WithLabelValues(string(res.Type), repairLabel(res)).Inc()

		repairResult = &res
		repairFailed = !res.Success
		score = res.ScoreAfter
		payload = res.RepairedPayload
	}

	packID, err := e.sealStepRecord(req, governing, check, repairResult, payload, wf.head)
	if err != nil {
		e.metrics.StepsTotal.WithLabelValues("evidence_error").Inc()
		return StepResult{}, err
	}
	wf.head = packID

	g, err := e.gates.Trigger(req.WorkflowID, req.WorkflowID, req.StepID, governing, score, repairFailed, packID)
	if err != nil {
		return StepResult{}, err
	}
	wf.head = g.HeadPackID
	e.metrics.GatesTotal.WithLabelValues(string(g.Type), string(g.State)).Inc()
	if g.State == gate.StateAwaitingHuman {
		e.metrics.PendingGates.Inc()
	}

	outcome := OutcomeProceed
	if g.State == gate.StateAwaitingHuman {
		outcome = OutcomeAwaitingHuman
	}
	e.metrics.StepsTotal.WithLabelValues(outcome).Inc()
	e.metrics.StepDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())

	e.logger.Info("step executed",
		zap.String("workflow_id", req.WorkflowID),
		zap.String("step_id", req.StepID),
		zap.String("policy_id", governing.ID),
		zap.String("outcome", outcome),
		zap.Int("integrity_score", score))

	return StepResult{
		WorkflowID:     req.WorkflowID,
		StepID:         req.StepID,
		PolicyID:       governing.ID,
		Outcome:        outcome,
		IntegrityScore: score,
		Repair:         repairResult,
		Gate:           g,
		EvidencePackID: packID,
	}, nil
}

// Decide applies a human gate decision. An approval resumes the
// workflow from the gated step; a rejection requires the producing
// agent to re-run that step's unit of work, which the caller signals by
// resubmitting the step.
func (e *Engine) Decide(input types.GateDecisionInput) (gate.Gate, string, error) {
	g, err := e.gates.Decide(input)
	if err != nil {
		return g, "", err
	}

	wf := e.workflow(input.WorkflowID)
	wf.mu.Lock()
	wf.head = g.HeadPackID
	wf.mu.Unlock()

	e.metrics.PendingGates.Dec()
	e.metrics.GatesTotal.WithLabelValues(string(g.Type), string(g.State)).Inc()

	outcome := OutcomeProceed
	if g.State == gate.StateRejected {
		outcome = OutcomeRejected
	}
	return g, outcome, nil
}

// governingPolicy picks the single policy the gate evaluates against:
// the most binding MAI level wins, pack precedence breaks ties within
// a level.
func (e *Engine) governingPolicy(req StepRequest) (policy.Policy, bool) {
	effective := e.library.ResolveEffective(policy.Query{
		WorkerType: req.WorkerType,
		Domain:     req.Domain,
	})
	if len(effective) == 0 {
		return policy.Policy{}, false
	}

	for _, level := range []policy.MAILevel{policy.MAIMandatory, policy.MAIAdvisory} {
		for _, p := range effective {
			if p.MAI == level {
				return p, true
			}
		}
	}
	return effective[0], true
}

func (e *Engine) sealStepRecord(req StepRequest, governing policy.Policy, check integrity.Result, repairResult *repair.Result, payload map[string]any, previousID string) (string, error) {
	record := map[string]any{
		"record_type":      "step_output",
		"workflow_id":      req.WorkflowID,
		"step_id":          req.StepID,
		"worker_type":      req.WorkerType,
		"domain":           req.Domain,
		"policy_id":        governing.ID,
		"policy_hash":      governing.ContentHash,
		"payload":          payload,
		"integrity_before": check.IntegrityScore,
	}
	if check.AnomalyDetected != "" {
		record["anomaly_detected"] = check.AnomalyDetected
		record["anomaly_type"] = check.AnomalyType
	}
	if repairResult != nil {
		record["repair_type"] = string(repairResult.Type)
		record["repair_success"] = repairResult.Success
		record["retry_count"] = repairResult.RetryCount
		record["integrity_after"] = repairResult.ScoreAfter
		if len(repairResult.Changes) > 0 {
			record["repair_changes"] = changeRecords(repairResult.Changes)
		}
	}

	pack, err := e.ledger.Append(req.WorkflowID, record, previousID)
	if err != nil {
		return "", err
	}
	sealed, err := e.ledger.Seal(req.WorkflowID, pack.ID)
	if err != nil {
		return "", err
	}
	return sealed.ID, nil
}

func changeRecords(changes []repair.Change) []any {
	out := make([]any, 0, len(changes))
	for _, c := range changes {
		out = append(out, map[string]any{
			"field_path": c.FieldPath,
			"before":     c.Before,
			"after":      c.After,
			"reason":     c.Reason,
			"source":     c.Source,
			"confidence": c.Confidence,
		})
	}
	return out
}

func repairLabel(res repair.Result) string {
	switch {
	case res.Cancelled:
		return "cancelled"
	case res.Success:
		return "success"
	default:
		return "exhausted"
	}
}
