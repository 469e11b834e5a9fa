package gate

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gavelhq/gavel/internal/evidence"
	"github.com/gavelhq/gavel/internal/policy"
	"github.com/gavelhq/gavel/pkg/types"
)

// Gate is one oversight gate instance for a (workflow, step) pair.
type Gate struct {
	ID          string `json:"id"`
	WorkflowID  string `json:"workflow_id"`
	StepID      string `json:"step_id"`
	ChainID     string `json:"chain_id"`
	PolicyID    string `json:"policy_id"`
	Type        Type   `json:"gate_type"`
	State       State  `json:"state"`
	Score       int    `json:"integrity_score"`
	Threshold   int    `json:"threshold"`
	Actor       string `json:"actor_identity,omitempty"`
	TriggeredAt string `json:"triggered_at"`
	ResolvedAt  string `json:"resolved_at,omitempty"`
	HeadPackID  string `json:"head_pack_id"`
}

// Manager drives gate instances and seals every transition into the
// owning workflow's evidence chain before reporting it.
type Manager struct {
	ledger *evidence.Ledger
	logger *zap.Logger
	now    func() string
	newID  func() string

	mu    sync.Mutex
	gates map[string]*Gate
}

func NewManager(ledger *evidence.Ledger, logger *zap.Logger, now func() string, newID func() string) *Manager {
	return &Manager{
		ledger: ledger,
		logger: logger,
		now:    now,
		newID:  newID,
		gates:  map[string]*Gate{},
	}
}

func gateKey(workflowID, stepID string) string {
	return workflowID + "/" + stepID
}

// Trigger fires the gate for a step and immediately resolves it as far
// as the machine allows: informational and passing conditional gates
// land in AUTO_APPROVED, everything else in AWAITING_HUMAN. Both the
// trigger and any auto-approval are sealed before the gate is returned;
// a sealing failure aborts the transition.
func (m *Manager) Trigger(chainID, workflowID, stepID string, pol policy.Policy, score int, repairFailed bool, previousPackID string) (Gate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := gateKey(workflowID, stepID)
	if existing, ok := m.gates[key]; ok && !Terminal(existing.State) {
		return *existing, fmt.Errorf("%w: %s/%s", ErrGatePending, workflowID, stepID)
	}

	g := &Gate{
		ID:          m.newID(),
		WorkflowID:  workflowID,
		StepID:      stepID,
		ChainID:     chainID,
		PolicyID:    pol.ID,
		Type:        TypeForMAI(pol.MAI),
		State:       StateTriggered,
		Score:       score,
		Threshold:   pol.GateThreshold,
		TriggeredAt: m.now(),
		HeadPackID:  previousPackID,
	}

	if err := m.seal(g, "triggered", ""); err != nil {
		return Gate{}, err
	}

	next := Resolve(EvalView{Type: g.Type, Score: score, Threshold: g.Threshold, RepairFailed: repairFailed})
	g.State = next
	if next == StateAutoApproved {
		g.ResolvedAt = m.now()
		if err := m.seal(g, OutcomeAutoApproved, "system"); err != nil {
			return Gate{}, err
		}
	}

	m.logger.Info("gate triggered",
		zap.String("gate_id", g.ID),
		zap.String("workflow_id", workflowID),
		zap.String("step_id", stepID),
		zap.String("gate_type", string(g.Type)),
		zap.String("state", string(g.State)),
		zap.Int("integrity_score", score))

	m.gates[key] = g
	return *g, nil
}

// Decide applies a human disposition. Decisions against resolved gates
// fail with ErrGateResolved and change nothing.
func (m *Manager) Decide(input types.GateDecisionInput) (Gate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gates[gateKey(input.WorkflowID, input.StepID)]
	if !ok {
		return Gate{}, fmt.Errorf("%w: %s/%s", ErrUnknownGate, input.WorkflowID, input.StepID)
	}

	next, err := ApplyDecision(g.State, input.Decision)
	if err != nil {
		return *g, err
	}

	// Seal first; the in-memory state only advances once the decision
	// record is immutable on the chain.
	staged := *g
	staged.State = next
	staged.Actor = input.ActorIdentity
	staged.ResolvedAt = m.now()
	if err := m.seal(&staged, input.Decision, input.ActorIdentity); err != nil {
		return *g, err
	}
	*g = staged

	m.logger.Info("gate decided",
		zap.String("gate_id", g.ID),
		zap.String("decision", input.Decision),
		zap.String("actor", input.ActorIdentity))

	return *g, nil
}

// Get returns the gate for a (workflow, step) pair.
func (m *Manager) Get(workflowID, stepID string) (Gate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gates[gateKey(workflowID, stepID)]
	if !ok {
		return Gate{}, fmt.Errorf("%w: %s/%s", ErrUnknownGate, workflowID, stepID)
	}
	return *g, nil
}

// Pending lists gates awaiting a human decision.
func (m *Manager) Pending() []Gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Gate
	for _, g := range m.gates {
		if g.State == StateAwaitingHuman {
			out = append(out, *g)
		}
	}
	return out
}

func (m *Manager) seal(g *Gate, event, actor string) error {
	payload := map[string]any{
		"record_type":     "gate_decision",
		"gate_id":         g.ID,
		"workflow_id":     g.WorkflowID,
		"step_id":         g.StepID,
		"policy_id":       g.PolicyID,
		"gate_type":       string(g.Type),
		"event":           event,
		"state":           string(g.State),
		"integrity_score": g.Score,
		"threshold":       g.Threshold,
		"recorded_at":     m.now(),
	}
	if actor != "" {
		payload["actor_identity"] = actor
	}

	pack, err := m.ledger.Append(g.ChainID, payload, g.HeadPackID)
	if err != nil {
		return fmt.Errorf("append gate record: %w", err)
	}
	sealed, err := m.ledger.Seal(g.ChainID, pack.ID)
	if err != nil {
		return fmt.Errorf("seal gate record: %w", err)
	}
	g.HeadPackID = sealed.ID
	return nil
}
