package stats

import (
	"context"

	"github.com/BatmanBruc/vip-orders-bot/internal/messages"
	"github.com/BatmanBruc/vip-orders-bot/internal/pricing"
	"github.com/BatmanBruc/vip-orders-bot/types"
	"go.uber.org/zap"
)

type PlanCount struct {
	Plan  string
	Count int
}

// Snapshot lists every catalog plan in display order, zero when unused.
// Subscriptions on plans no longer in the catalog are counted in Other.
type Snapshot struct {
	Plans         []PlanCount
	Other         int
	PendingReview int
}

func (s Snapshot) Total() int {
	total := s.Other
	for _, p := range s.Plans {
		total += p.Count
	}
	return total
}

func (s Snapshot) Count(plan string) int {
	for _, p := range s.Plans {
		if p.Plan == plan {
			return p.Count
		}
	}
	return 0
}

func (s Snapshot) Text() string {
	lines := make([]messages.StatsLine, 0, len(s.Plans))
	for _, p := range s.Plans {
		lines = append(lines, messages.StatsLine{Plan: p.Plan, Count: p.Count})
	}
	return messages.Stats(lines, s.Total(), s.PendingReview)
}

type Reporter struct {
	store  types.OrderStore
	logger *zap.Logger
}

func NewReporter(s types.OrderStore, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{store: s, logger: logger.Named("stats")}
}

// Collect counts active subscriptions per plan. It only reads.
func (r *Reporter) Collect(ctx context.Context) (Snapshot, error) {
	catalog := pricing.All()
	snap := Snapshot{Plans: make([]PlanCount, len(catalog))}
	index := make(map[string]int, len(catalog))
	for i, p := range catalog {
		snap.Plans[i] = PlanCount{Plan: p.ID}
		index[p.ID] = i
	}

	for rec, err := range r.store.All(ctx) {
		if err != nil {
			return Snapshot{}, err
		}
		if rec.Subscription != nil {
			if i, ok := index[rec.Subscription.Plan]; ok {
				snap.Plans[i].Count++
			} else {
				snap.Other++
				r.logger.Debug("subscription on unknown plan",
					zap.Int64("subscriber_id", rec.SubscriberID),
					zap.String("plan", rec.Subscription.Plan),
				)
			}
		}
		if o := rec.PendingOrder(); o != nil && o.Status == types.StatusPendingReview {
			snap.PendingReview++
		}
	}
	return snap, nil
}
