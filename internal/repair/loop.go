package repair

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gavelhq/gavel/internal/integrity"
)

// State enumerates the repair machine states.
type State string

const (
	StateChecking     State = "CHECKING"
	StateClassifying  State = "CLASSIFYING"
	StateSanitizing   State = "SANITIZING"
	StateReconciling  State = "RECONCILING"
	StateRevalidating State = "REVALIDATING"
	StateRetry        State = "RETRY"
	StateSucceeded    State = "SUCCEEDED"
	StateFailed       State = "FAILED"
)

// DefaultThreshold is the integrity score a repaired payload must reach.
const DefaultThreshold = 85

// DefaultMaxRetries bounds the number of remediation attempts.
const DefaultMaxRetries = 3

// MachineView is the immutable input to one transition decision.
type MachineView struct {
	Resilient  bool
	RepairType Type
	Score      int
	Threshold  int
	Attempt    int
	MaxRetries int
}

// Advance is the pure transition function of the repair state machine.
// The driver owns all effects; keeping transitions pure makes the
// bounded-retry invariant testable in isolation.
func Advance(state State, view MachineView) State {
	switch state {
	case StateChecking:
		if view.Resilient {
			return StateSucceeded
		}
		return StateClassifying
	case StateClassifying:
		return StateSanitizing
	case StateSanitizing:
		if needsReconciliation(view.RepairType) {
			return StateReconciling
		}
		return StateRevalidating
	case StateReconciling:
		return StateRevalidating
	case StateRevalidating:
		if view.Score >= view.Threshold {
			return StateSucceeded
		}
		if view.Attempt >= view.MaxRetries {
			return StateFailed
		}
		return StateRetry
	case StateRetry:
		return StateClassifying
	default:
		return state
	}
}

// Options configures a Loop.
type Options struct {
	Threshold  int
	MaxRetries int
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// Loop drives remediation attempts under a retry budget. One Loop
// serves one workflow instance; attempts never run concurrently.
type Loop struct {
	opts       Options
	checker    *integrity.Checker
	reconciler *Reconciler
	logger     *zap.Logger
	log        *Log
	clock      func() time.Time
}

func NewLoop(checker *integrity.Checker, reconciler *Reconciler, opts Options, logger *zap.Logger) *Loop {
	return &Loop{
		opts:       opts.withDefaults(),
		checker:    checker,
		reconciler: reconciler,
		logger:     logger,
		log:        NewLog(),
		clock:      time.Now,
	}
}

// AuditLog exposes the append-only record of completed repairs.
func (l *Loop) AuditLog() *Log { return l.log }

// Repair runs the remediation state machine over payload, starting from
// an already-computed integrity check. It always returns a Result;
// exhausting the retry budget or cancellation yields Success=false and
// the caller must surface that to the oversight gate, never accept it
// silently. Cancellation is honored between attempts, not mid-attempt.
func (l *Loop) Repair(ctx context.Context, payload map[string]any, check integrity.Result) Result {
	started := l.clock()
	opts := l.opts

	result := Result{
		OriginalPayload: payload,
		RepairedPayload: payload,
		ScoreBefore:     check.IntegrityScore,
		ScoreAfter:      check.IntegrityScore,
	}

	current := payload
	anomaly := check
	attempt := 0
	var repairType Type

	state := Advance(StateChecking, MachineView{Resilient: check.Resilient})
	if state == StateSucceeded {
		result.Success = true
		result.Duration = l.clock().Sub(started)
		l.log.Append(result)
		return result
	}

	for {
		switch state {
		case StateClassifying:
			attempt++
			repairType = Classify(anomaly)
			result.Type = repairType
			l.logger.Debug("classified anomaly",
				zap.Int("attempt", attempt),
				zap.String("repair_type", string(repairType)),
				zap.String("anomaly", anomaly.AnomalyDetected))
			state = Advance(state, MachineView{})

		case StateSanitizing:
			var changes []Change
			current, changes = Sanitize(current)
			result.Changes = append(result.Changes, changes...)
			state = Advance(state, MachineView{RepairType: repairType})

		case StateReconciling:
			var changes []Change
			current, changes = l.reconciler.Reconcile(ctx, current, anomaly.AnomalyDetected)
			result.Changes = append(result.Changes, changes...)
			state = Advance(state, MachineView{})

		case StateRevalidating:
			anomaly = l.checker.Check(ctx, current)
			result.RetryCount = attempt
			result.ScoreAfter = anomaly.IntegrityScore
			state = Advance(state, MachineView{
				Score:      anomaly.IntegrityScore,
				Threshold:  opts.Threshold,
				Attempt:    attempt,
				MaxRetries: opts.MaxRetries,
			})

		case StateRetry:
			// The only cancellation point: between attempts.
			if err := ctx.Err(); err != nil {
				result.Cancelled = true
				state = StateFailed
				continue
			}
			state = Advance(state, MachineView{})

		case StateSucceeded:
			result.Success = true
			result.RepairedPayload = current
			result.Duration = l.clock().Sub(started)
			l.log.Append(result)
			return result

		case StateFailed:
			result.Success = false
			result.RepairedPayload = current
			result.Duration = l.clock().Sub(started)
			l.logger.Warn("repair budget exhausted",
				zap.Int("retry_count", result.RetryCount),
				zap.Int("score_after", result.ScoreAfter),
				zap.Bool("cancelled", result.Cancelled))
			l.log.Append(result)
			return result
		}
	}
}
