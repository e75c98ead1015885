package s2_signals

import (
	"strings"
	"time"

	"github.com/wonny/sgloader/internal/contracts"
)

const runSuffix = "-RUN"

// Reconciler decides insert vs. merge for one incoming Signal.
// ⭐ SSOT: accumulation rules (signal_count, run_history, tags, milestone union) live here only
type Reconciler struct {
	loc *time.Location
}

// NewReconciler creates a reconciler that stamps run times in loc
func NewReconciler(loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{loc: loc}
}

// Reconcile returns the row to persist. existing is nil on first observation.
func (r *Reconciler) Reconcile(existing *contracts.Signal, incoming contracts.Signal, now time.Time) contracts.Signal {
	stamp := r.stamp(incoming.RunTime, now)

	if existing == nil {
		out := incoming
		out.ID = 0
		out.SignalCount = 1
		out.RunHistory = stamp + runSuffix
		out.Tags = snapshotEntry(stamp, incoming.TagSnapshot)
		out.BullishMilestoneTags = unionTags(nil, incoming.BullishMilestoneTags)
		out.BearishMilestoneTags = unionTags(nil, incoming.BearishMilestoneTags)
		out.IsActive = true
		out.IsProcessed = false
		out.UpdatedTime = now
		return out
	}

	out := *existing
	out.Price = incoming.Price
	out.Change = incoming.Change
	out.Percentage = incoming.Percentage
	if incoming.Level != nil {
		out.Level = incoming.Level
	}
	out.UpdatedTime = now
	out.SignalCount = existing.SignalCount + 1
	out.IsProcessed = false
	out.RunHistory = appendEntry(existing.RunHistory, stamp+runSuffix)
	out.Tags = appendEntry(existing.Tags, snapshotEntry(stamp, incoming.TagSnapshot))
	out.BullishMilestoneTags = unionTags(existing.BullishMilestoneTags, incoming.BullishMilestoneTags)
	out.BearishMilestoneTags = unionTags(existing.BearishMilestoneTags, incoming.BearishMilestoneTags)
	out.TagSnapshot = incoming.TagSnapshot
	return out
}

// stamp is the run's HH:MM in the market zone
func (r *Reconciler) stamp(runTime, now time.Time) string {
	if runTime.IsZero() {
		runTime = now
	}
	return runTime.In(r.loc).Format("15:04")
}

func snapshotEntry(stamp, snapshot string) string {
	if snapshot == "" {
		return ""
	}
	return stamp + "-" + snapshot
}

func appendEntry(history, entry string) string {
	switch {
	case entry == "":
		return history
	case history == "":
		return entry
	default:
		return history + ", " + entry
	}
}

// unionTags merges whitespace-separated token sets, keeping first-seen order.
// An empty union is nil (stored as NULL).
func unionTags(prior, incoming *string) *string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, set := range []*string{prior, incoming} {
		if set == nil {
			continue
		}
		for _, tok := range strings.Fields(*set) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	joined := strings.Join(tokens, " ")
	return &joined
}
