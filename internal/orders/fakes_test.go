package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/store"
	"github.com/BatmanBruc/vip-orders-bot/types"
	"go.uber.org/zap/zaptest"
)

const (
	testOperator   int64 = 1000
	testSubscriber int64 = 42
	testVIPLink          = "https://t.me/+vip"
	testSupport          = "@support"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []types.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg types.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) to(chatID int64) []types.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []types.Notification
	for _, m := range n.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) containing(chatID int64, text string) int {
	count := 0
	for _, m := range n.to(chatID) {
		if strings.Contains(m.Text, text) {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

// racingStore runs racer right before the wrapped CompareAndSwap, races times.
type racingStore struct {
	types.OrderStore
	races int
	racer func()
	swaps int
}

func (s *racingStore) CompareAndSwap(ctx context.Context, id int64, expected int64, rec *types.Record) error {
	s.swaps++
	if s.races > 0 {
		s.races--
		s.racer()
	}
	return s.OrderStore.CompareAndSwap(ctx, id, expected, rec)
}

type harness struct {
	engine   *Engine
	store    *store.MemoryStore
	notifier *recordingNotifier
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    store.NewMemoryStore(),
		notifier: &recordingNotifier{},
		now:      testNow,
	}
	h.engine = h.newEngine(t, h.store)
	return h
}

func (h *harness) newEngine(t *testing.T, s types.OrderStore) *Engine {
	t.Helper()
	return NewEngine(s, h.notifier, Config{
		OperatorID:     testOperator,
		VIPLink:        testVIPLink,
		SupportContact: testSupport,
		MaxAttempts:    3,
	}, zaptest.NewLogger(t), WithClock(func() time.Time { return h.now }))
}

func (h *harness) start(t *testing.T, planID string) *types.Order {
	t.Helper()
	order, err := h.engine.StartOrder(context.Background(), StartRequest{
		SubscriberID: testSubscriber,
		Name:         "Alice",
		Handle:       "alice",
		PlanID:       planID,
	})
	if err != nil {
		t.Fatalf("start order: %v", err)
	}
	return order
}

func (h *harness) proof(t *testing.T) {
	t.Helper()
	if _, err := h.engine.SubmitProof(context.Background(), ProofRequest{
		SubscriberID: testSubscriber,
		ProofRef:     "photo-file-id",
		ProofKind:    types.ProofPhoto,
	}); err != nil {
		t.Fatalf("submit proof: %v", err)
	}
}

func (h *harness) record(t *testing.T) *types.Record {
	t.Helper()
	rec, err := h.store.Get(context.Background(), testSubscriber)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	return rec
}

func decision(orderID string) Decision {
	return Decision{OperatorID: testOperator, SubscriberID: testSubscriber, OrderID: orderID}
}

func isErr(err, target error) bool {
	return errors.Is(err, target)
}
