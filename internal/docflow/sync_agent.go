package docflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// SyncPolicy decides what happens when a background refetch resolves after
// the entity store has moved on.
type SyncPolicy int

const (
	// Sequenced drops a fetch result if the entity store was mutated, or a
	// newer step change issued another fetch, after it was issued.
	Sequenced SyncPolicy = iota
	// LastResolvedWins applies every fetch result as it resolves, whatever
	// happened in between.
	LastResolvedWins
)

func (p SyncPolicy) String() string {
	switch p {
	case Sequenced:
		return "sequenced"
	case LastResolvedWins:
		return "last-resolved-wins"
	default:
		return fmt.Sprintf("SyncPolicy(%d)", int(p))
	}
}

// ParseSyncPolicy accepts "sequenced" (or empty) and "last-resolved-wins".
func ParseSyncPolicy(raw string) (SyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "sequenced":
		return Sequenced, nil
	case "last-resolved-wins", "last_resolved_wins":
		return LastResolvedWins, nil
	default:
		return Sequenced, fmt.Errorf("unknown sync policy %q", raw)
	}
}

// SyncAgent refetches the document graph on every step change and writes it
// into the entity store. Fetches are fire-and-forget: failures are logged and
// never reach the user.
type SyncAgent struct {
	documentID int64
	teamID     *int64
	policy     SyncPolicy

	entities *EntityStore
	remote   Remote
	logger   *slog.Logger

	// mu orders fetch issuance against result application.
	mu        sync.Mutex
	latestSeq uint64

	ctx         context.Context
	cancel      context.CancelFunc
	inflight    sync.WaitGroup
	unsubscribe func()
}

// Attach subscribes the agent to controller step changes.
func (a *SyncAgent) Attach(c *Controller) {
	a.unsubscribe = c.Subscribe(a.OnStepChanged)
}

// OnStepChanged issues one background fetch for the event.
func (a *SyncAgent) OnStepChanged(event StepChanged) {
	a.mu.Lock()
	if event.Seq > a.latestSeq {
		a.latestSeq = event.Seq
	}
	issuedAt := a.entities.Version()
	a.mu.Unlock()

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.reconcile(event, issuedAt)
	}()
}

func (a *SyncAgent) reconcile(event StepChanged, issuedAt uint64) {
	graph, err := a.remote.GetDocumentGraph(a.ctx, a.documentID, a.teamID)
	if err != nil {
		a.logger.WarnContext(a.ctx, "sync_failed",
			slog.Int64("document_id", a.documentID),
			slog.String("step", event.To.String()),
			slog.Uint64("seq", event.Seq),
			slog.Any("error", err),
		)
		return
	}

	if a.policy == LastResolvedWins {
		a.entities.ReplaceGraph(graph)
		return
	}
	a.mu.Lock()
	applied := event.Seq == a.latestSeq && a.entities.ReplaceGraphIfVersion(graph, issuedAt)
	a.mu.Unlock()
	if !applied {
		a.logger.DebugContext(a.ctx, "sync_stale_dropped",
			slog.Int64("document_id", a.documentID),
			slog.String("step", event.To.String()),
			slog.Uint64("seq", event.Seq),
			slog.Uint64("issued_version", issuedAt),
		)
	}
}

// Wait blocks until every fetch issued so far has resolved.
func (a *SyncAgent) Wait() {
	a.inflight.Wait()
}

// Close detaches the agent and cancels fetches still in flight.
func (a *SyncAgent) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.cancel()
	a.inflight.Wait()
}
