package orders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/internal/pricing"
	"github.com/BatmanBruc/vip-orders-bot/types"
)

func TestStartThenApproveSetsExpiry(t *testing.T) {
	for _, plan := range pricing.All() {
		t.Run(plan.ID, func(t *testing.T) {
			h := newHarness(t)
			order := h.start(t, plan.ID)
			h.proof(t)

			sub, err := h.engine.Approve(context.Background(), decision(order.ID))
			if err != nil {
				t.Fatalf("approve: %v", err)
			}
			if plan.Lifetime() {
				if sub.ExpiresAt != nil {
					t.Fatalf("lifetime plan got expiry %v", sub.ExpiresAt)
				}
			} else {
				want := order.CreatedAt.AddDate(0, 0, plan.DurationDays)
				if sub.ExpiresAt == nil || !sub.ExpiresAt.Equal(want) {
					t.Fatalf("expires_at = %v, want %v", sub.ExpiresAt, want)
				}
			}

			rec := h.record(t)
			if rec.Subscription == nil || rec.Subscription.Plan != plan.ID {
				t.Fatalf("subscription not stored: %+v", rec.Subscription)
			}
			if rec.PendingOrder() != nil || rec.Order.Status != types.StatusApproved || rec.Order.DecidedAt == nil {
				t.Fatalf("order not closed: %+v", rec.Order)
			}
		})
	}
}

func TestApproveExampleFlow(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "basic")
	h.proof(t)
	if _, err := h.engine.Approve(context.Background(), decision(order.ID)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	rec := h.record(t)
	if rec.Handle != "alice" || rec.Name != "Alice" {
		t.Fatalf("profile not kept: %+v", rec)
	}
	if rec.PendingOrder() != nil {
		t.Fatal("no order should be pending after approval")
	}
	want := testNow.AddDate(0, 0, 7)
	if rec.Subscription.Plan != "basic" || !rec.Subscription.ExpiresAt.Equal(want) {
		t.Fatalf("subscription = %+v", rec.Subscription)
	}
	if got := h.notifier.containing(testSubscriber, testVIPLink); got != 1 {
		t.Fatalf("expected one VIP link message, got %d", got)
	}
}

func TestStartOrderNotifiesBothSides(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "premium")

	if order.Status != types.StatusPendingProof || order.Plan != "premium" || order.ID == "" {
		t.Fatalf("unexpected order: %+v", order)
	}

	toSubscriber := h.notifier.to(testSubscriber)
	if len(toSubscriber) != 1 || !strings.Contains(toSubscriber[0].Text, "$135") || !strings.Contains(toSubscriber[0].Text, "30 days") {
		t.Fatalf("subscriber notification = %+v", toSubscriber)
	}

	toOperator := h.notifier.to(testOperator)
	if len(toOperator) != 1 {
		t.Fatalf("expected one operator notification, got %d", len(toOperator))
	}
	actions := toOperator[0].Actions
	if len(actions) != 2 {
		t.Fatalf("expected approve and reject actions, got %+v", actions)
	}
	for _, a := range actions {
		kind, sid, oid, err := ParseAction(a.CallbackData)
		if err != nil {
			t.Fatalf("parse %q: %v", a.CallbackData, err)
		}
		if kind != a.Kind || sid != testSubscriber || oid != order.ID {
			t.Fatalf("action %q decodes to %s/%d/%s", a.CallbackData, kind, sid, oid)
		}
		if len(a.CallbackData) > 64 {
			t.Fatalf("callback data too long: %d", len(a.CallbackData))
		}
	}
}

func TestStartOrderInvalidPlan(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.StartOrder(context.Background(), StartRequest{SubscriberID: testSubscriber, PlanID: "gold"})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatalf("invalid plan must not notify, got %+v", h.notifier.sent)
	}
	if _, err := h.store.Get(context.Background(), testSubscriber); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("invalid plan must not write, got %v", err)
	}
}

func TestApproveTwiceIsNoop(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "premium")
	h.proof(t)
	ctx := context.Background()

	first, err := h.engine.Approve(ctx, decision(order.ID))
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	versionAfterFirst := h.record(t).Version

	h.now = h.now.Add(time.Hour)
	if _, err := h.engine.Approve(ctx, decision(order.ID)); !errors.Is(err, ErrNoPendingOrder) {
		t.Fatalf("second approve: expected ErrNoPendingOrder, got %v", err)
	}
	if _, err := h.engine.Reject(ctx, decision(order.ID)); !errors.Is(err, ErrNoPendingOrder) {
		t.Fatalf("reject after approve: expected ErrNoPendingOrder, got %v", err)
	}

	rec := h.record(t)
	if rec.Version != versionAfterFirst {
		t.Fatal("duplicate decision must not write")
	}
	if !rec.Subscription.ExpiresAt.Equal(*first.ExpiresAt) {
		t.Fatal("duplicate approve must not extend the subscription")
	}
	if got := h.notifier.containing(testSubscriber, "Payment confirmed"); got != 1 {
		t.Fatalf("expected exactly one approval notification, got %d", got)
	}
	if got := h.notifier.containing(testSubscriber, "rejected"); got != 0 {
		t.Fatalf("expected no rejection notification, got %d", got)
	}
}

func TestApproveNeedsProof(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "basic")
	if _, err := h.engine.Approve(context.Background(), decision(order.ID)); !errors.Is(err, ErrNoPendingOrder) {
		t.Fatalf("expected ErrNoPendingOrder, got %v", err)
	}
	if h.record(t).Subscription != nil {
		t.Fatal("no subscription before proof review")
	}
}

func TestApproveUnknownSubscriber(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Approve(context.Background(), Decision{OperatorID: testOperator, SubscriberID: 999})
	if !errors.Is(err, ErrNoPendingOrder) {
		t.Fatalf("expected ErrNoPendingOrder, got %v", err)
	}
	if _, err := h.store.Get(context.Background(), 999); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("approve must not create records, got %v", err)
	}
}

func TestDecisionRequiresOperator(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "basic")
	h.proof(t)
	before := h.record(t)
	h.notifier.reset()

	for _, caller := range []int64{0, testSubscriber, testOperator + 1} {
		d := Decision{OperatorID: caller, SubscriberID: testSubscriber, OrderID: order.ID}
		if _, err := h.engine.Approve(context.Background(), d); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("approve by %d: expected ErrUnauthorized, got %v", caller, err)
		}
		if _, err := h.engine.Reject(context.Background(), d); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("reject by %d: expected ErrUnauthorized, got %v", caller, err)
		}
	}

	after := h.record(t)
	if after.Version != before.Version || after.Order.Status != types.StatusPendingReview {
		t.Fatalf("unauthorized decision changed state: %+v", after.Order)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatalf("unauthorized decision notified: %+v", h.notifier.sent)
	}
}

func TestRestartReplacesPendingOrder(t *testing.T) {
	h := newHarness(t)
	ids := []string{"first-order", "second-order"}
	h.engine = NewEngine(h.store, h.notifier, Config{OperatorID: testOperator, VIPLink: testVIPLink}, nil,
		WithClock(func() time.Time { return h.now }),
		WithIDGenerator(func(time.Time) string {
			id := ids[0]
			ids = ids[1:]
			return id
		}),
	)

	old := h.start(t, "basic")
	h.proof(t)
	fresh := h.start(t, "premium")
	if old.ID == fresh.ID {
		t.Fatal("order ids must differ")
	}

	rec := h.record(t)
	if rec.Order.ID != fresh.ID || rec.Order.Status != types.StatusPendingProof || rec.Order.ProofRef != "" {
		t.Fatalf("new order must replace the old one: %+v", rec.Order)
	}

	h.proof(t)
	if _, err := h.engine.Approve(context.Background(), decision(old.ID)); !errors.Is(err, ErrNoPendingOrder) {
		t.Fatalf("old order id must not be approvable, got %v", err)
	}
	sub, err := h.engine.Approve(context.Background(), decision(fresh.ID))
	if err != nil {
		t.Fatalf("approve new order: %v", err)
	}
	if sub.Plan != "premium" {
		t.Fatalf("approved plan = %s", sub.Plan)
	}
}

func TestSubmitProofWithoutOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.SubmitProof(context.Background(), ProofRequest{SubscriberID: testSubscriber, ProofRef: "x"})
	if !errors.Is(err, ErrNoPendingOrder) {
		t.Fatalf("expected ErrNoPendingOrder, got %v", err)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatal("stray upload must not notify")
	}
}

func TestSubmitProofOnlyOnce(t *testing.T) {
	h := newHarness(t)
	h.start(t, "basic")
	h.proof(t)
	h.notifier.reset()

	_, err := h.engine.SubmitProof(context.Background(), ProofRequest{SubscriberID: testSubscriber, ProofRef: "second"})
	if !errors.Is(err, ErrNoPendingOrder) {
		t.Fatalf("expected ErrNoPendingOrder, got %v", err)
	}
	if h.record(t).Order.ProofRef != "photo-file-id" {
		t.Fatal("proof must not be replaced once under review")
	}
	if len(h.notifier.sent) != 0 {
		t.Fatal("ignored upload must not notify")
	}
}

func TestSubmitProofNotifiesOperatorWithAttachment(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "elite")
	h.notifier.reset()
	h.proof(t)

	rec := h.record(t)
	if rec.Order.Status != types.StatusPendingReview || rec.Order.ProofKind != types.ProofPhoto {
		t.Fatalf("order after proof = %+v", rec.Order)
	}
	op := h.notifier.to(testOperator)
	if len(op) != 1 || op[0].Attachment == nil || op[0].Attachment.FileID != "photo-file-id" {
		t.Fatalf("operator notification = %+v", op)
	}
	if !strings.Contains(op[0].Text, order.ID) || len(op[0].Actions) != 2 {
		t.Fatalf("operator notification lacks correlation: %+v", op[0])
	}
	if len(h.notifier.to(testSubscriber)) != 1 {
		t.Fatal("subscriber should get a receipt")
	}
}

func TestSubmitProofRequiresRef(t *testing.T) {
	h := newHarness(t)
	h.start(t, "basic")
	if _, err := h.engine.SubmitProof(context.Background(), ProofRequest{SubscriberID: testSubscriber, ProofRef: " "}); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}
}

func TestRejectKeepsExistingSubscription(t *testing.T) {
	h := newHarness(t)
	first := h.start(t, "basic")
	h.proof(t)
	if _, err := h.engine.Approve(context.Background(), decision(first.ID)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	second := h.start(t, "premium")
	h.proof(t)
	h.notifier.reset()
	order, err := h.engine.Reject(context.Background(), decision(second.ID))
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if order.Status != types.StatusRejected {
		t.Fatalf("order status = %s", order.Status)
	}

	rec := h.record(t)
	if rec.Subscription == nil || rec.Subscription.Plan != "basic" {
		t.Fatalf("reject must not touch the earlier subscription: %+v", rec.Subscription)
	}
	msgs := h.notifier.to(testSubscriber)
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, testSupport) {
		t.Fatalf("rejection notification = %+v", msgs)
	}
}

func TestRejectWithoutSubscription(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "basic")
	h.proof(t)
	if _, err := h.engine.Reject(context.Background(), decision(order.ID)); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if h.record(t).Subscription != nil {
		t.Fatal("rejected orders never grant a subscription")
	}
}

func TestNotificationFailureKeepsCommit(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("telegram down")

	order := h.start(t, "basic")
	h.proof(t)
	if _, err := h.engine.Approve(context.Background(), decision(order.ID)); err != nil {
		t.Fatalf("approve with failing notifier: %v", err)
	}
	if h.record(t).Subscription == nil {
		t.Fatal("commit must survive notification failure")
	}
}

func TestApproveRetriesAfterConcurrentWrite(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "premium")
	h.proof(t)

	ctx := context.Background()
	racing := &racingStore{OrderStore: h.store, races: 1}
	racing.racer = func() {
		rec, err := h.store.Get(ctx, testSubscriber)
		if err != nil {
			t.Fatalf("racer read: %v", err)
		}
		rec.Name = "Alice (renamed)"
		if err := h.store.CompareAndSwap(ctx, testSubscriber, rec.Version, rec); err != nil {
			t.Fatalf("racer write: %v", err)
		}
	}
	engine := h.newEngine(t, racing)

	if _, err := engine.Approve(ctx, decision(order.ID)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if racing.swaps != 2 {
		t.Fatalf("expected a retry after the conflict, swaps=%d", racing.swaps)
	}
	rec := h.record(t)
	if rec.Name != "Alice (renamed)" || rec.Subscription == nil {
		t.Fatalf("both writes must survive: %+v", rec)
	}
}

func TestApproveGivesUpAfterRepeatedConflicts(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "basic")
	h.proof(t)
	h.notifier.reset()

	ctx := context.Background()
	racing := &racingStore{OrderStore: h.store, races: 100}
	racing.racer = func() {
		rec, _ := h.store.Get(ctx, testSubscriber)
		_ = h.store.CompareAndSwap(ctx, testSubscriber, rec.Version, rec)
	}
	engine := h.newEngine(t, racing)

	_, err := engine.Approve(ctx, decision(order.ID))
	if !errors.Is(err, types.ErrTransientFailure) {
		t.Fatalf("expected ErrTransientFailure, got %v", err)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatal("failed transition must not notify")
	}
	if h.record(t).Order.Status != types.StatusPendingReview {
		t.Fatal("failed transition must not change the order")
	}
}

func TestConcurrentApprovals(t *testing.T) {
	h := newHarness(t)
	order := h.start(t, "basic")
	h.proof(t)
	h.notifier.reset()

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := h.engine.Approve(context.Background(), decision(order.ID))
			errs <- err
		}()
	}
	ok := 0
	for i := 0; i < n; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case isErr(err, ErrNoPendingOrder), isErr(err, types.ErrTransientFailure):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful approval, got %d", ok)
	}
	if got := h.notifier.containing(testSubscriber, "Payment confirmed"); got != 1 {
		t.Fatalf("expected one approval message, got %d", got)
	}
}
