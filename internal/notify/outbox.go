// Package notify delivers gate notifications through a durable outbox:
// a pending gate enqueues a record, a poll worker posts it with
// exponential backoff until delivery succeeds.
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poster delivers one gate notification to an external endpoint.
type Poster interface {
	PostGateNotice(ctx context.Context, notice GateNotice) error
}

// GateNotice is the payload posted for a gate awaiting a decision.
type GateNotice struct {
	GateID         string `json:"gate_id"`
	WorkflowID     string `json:"workflow_id"`
	StepID         string `json:"step_id"`
	PolicyID       string `json:"policy_id"`
	GateType       string `json:"gate_type"`
	IntegrityScore int    `json:"integrity_score"`
	TriggeredAt    string `json:"triggered_at"`
}

const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// Record is one outbox entry.
type Record struct {
	ID            string
	Notice        GateNotice
	Status        string
	AttemptCount  int
	NextAttemptAt time.Time
	SentAt        time.Time
	LastError     string
}

// Outbox keeps pending notifications in memory. Records survive poster
// failures, not process restarts; gates themselves are durable on the
// evidence chain and can re-enqueue on startup.
type Outbox struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewOutbox() *Outbox {
	return &Outbox{records: map[string]*Record{}}
}

// Enqueue registers a notification for delivery. Enqueueing the same
// gate twice is a no-op so triggers can be replayed safely.
func (o *Outbox) Enqueue(notice GateNotice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.records[notice.GateID]; ok {
		return
	}
	o.records[notice.GateID] = &Record{ID: notice.GateID, Notice: notice, Status: StatusPending}
}

// Due returns pending records whose next attempt time has passed, in
// stable id order.
func (o *Outbox) Due(now time.Time, limit int) []Record {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []Record
	for _, rec := range o.records {
		if rec.Status == StatusPending && !rec.NextAttemptAt.After(now) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (o *Outbox) markSent(id string, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rec, ok := o.records[id]; ok {
		rec.Status = StatusSent
		rec.SentAt = now
		rec.LastError = ""
	}
}

func (o *Outbox) markFailed(id string, now time.Time, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rec, ok := o.records[id]; ok {
		rec.NextAttemptAt = now.Add(nextAttempt(rec.AttemptCount))
		rec.AttemptCount++
		rec.LastError = err.Error()
	}
}

// Record returns a copy of one outbox entry.
func (o *Outbox) Record(id string) (Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// ProcessDue posts due pending records and updates their state. Posting
// failure schedules the next attempt with exponential backoff.
func ProcessDue(ctx context.Context, outbox *Outbox, poster Poster, now time.Time, limit int, logger *zap.Logger) (int, error) {
	if outbox == nil {
		return 0, fmt.Errorf("missing outbox")
	}
	if poster == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}

	processed := 0
	for _, rec := range outbox.Due(now, limit) {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		if err := poster.PostGateNotice(ctx, rec.Notice); err != nil {
			outbox.markFailed(rec.ID, now, err)
			logger.Warn("gate notification failed",
				zap.String("gate_id", rec.ID),
				zap.Int("attempt", rec.AttemptCount+1),
				zap.Error(err))
			processed++
			continue
		}

		outbox.markSent(rec.ID, now)
		processed++
	}
	return processed, nil
}

func nextAttempt(attemptCount int) time.Duration {
	// 5s, 10s, 20s, 40s, ... capped at 5m.
	base := 5 * time.Second
	if attemptCount <= 0 {
		return base
	}
	d := base << attemptCount
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}

// RunWorker polls and processes due outbox entries until ctx is
// cancelled.
func RunWorker(ctx context.Context, outbox *Outbox, poster Poster, pollInterval time.Duration, logger *zap.Logger) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			_, _ = ProcessDue(ctx, outbox, poster, now, 25, logger)
		}
	}
}
