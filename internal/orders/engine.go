package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/internal/messages"
	"github.com/BatmanBruc/vip-orders-bot/internal/pricing"
	"github.com/BatmanBruc/vip-orders-bot/store"
	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	ErrInvalidPlan    = errors.New("invalid plan")
	ErrInvalidProof   = errors.New("invalid proof")
	ErrNoPendingOrder = errors.New("no pending order")
	ErrUnauthorized   = errors.New("unauthorized")
)

type Config struct {
	OperatorID     int64
	VIPLink        string
	SupportContact string
	MaxAttempts    int
}

// Engine drives the order state machine. It is the only writer of order
// state; every transition is a store.Mutate cycle and notifications are
// sent only after the write commits.
type Engine struct {
	store    types.OrderStore
	notifier types.Notifier
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	newID    func(time.Time) string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithIDGenerator(newID func(time.Time) string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

func NewEngine(s types.OrderStore, notifier types.Notifier, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = store.DefaultAttempts
	}
	e := &Engine{
		store:    s,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.Named("orders"),
		now:      time.Now,
		newID:    newOrderID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func newOrderID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

func (e *Engine) OperatorID() int64 {
	return e.cfg.OperatorID
}

type StartRequest struct {
	SubscriberID int64
	Name         string
	Handle       string
	PlanID       string
}

type ProofRequest struct {
	SubscriberID int64
	Name         string
	Handle       string
	ProofRef     string
	ProofKind    types.ProofKind
}

type Decision struct {
	OperatorID   int64
	SubscriberID int64
	OrderID      string
}

// StartOrder validates the plan and stores a fresh order waiting for proof.
// Any order the subscriber still had open is replaced.
func (e *Engine) StartOrder(ctx context.Context, req StartRequest) (*types.Order, error) {
	plan, err := pricing.Lookup(req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, req.PlanID)
	}

	now := e.now()
	order := types.Order{
		ID:        e.newID(now),
		Plan:      plan.ID,
		Status:    types.StatusPendingProof,
		CreatedAt: now,
	}

	var replaced string
	rec, err := store.Mutate(ctx, e.store, req.SubscriberID, e.cfg.MaxAttempts, func(rec *types.Record, exists bool) error {
		replaced = ""
		if !exists {
			rec.CreatedAt = now
		}
		applyProfile(rec, req.Name, req.Handle)
		if prev := rec.PendingOrder(); prev != nil {
			replaced = prev.ID
		}
		o := order
		rec.Order = &o
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start order for %d: %w", req.SubscriberID, err)
	}

	fields := []zap.Field{
		zap.Int64("subscriber_id", req.SubscriberID),
		zap.String("order_id", order.ID),
		zap.String("plan", plan.ID),
	}
	if replaced != "" {
		fields = append(fields, zap.String("replaced_order_id", replaced))
	}
	e.logger.Info("order started", fields...)

	e.notify(ctx, types.Notification{
		ChatID: req.SubscriberID,
		Text:   messages.OrderReceived(plan),
	})
	e.notify(ctx, types.Notification{
		ChatID:  e.cfg.OperatorID,
		Text:    messages.OperatorNewOrder(rec.Name, rec.Handle, req.SubscriberID, plan, order.ID),
		Actions: decisionActions(req.SubscriberID, order.ID),
	})
	return &order, nil
}

// SubmitProof attaches payment evidence to an order waiting for proof and
// moves it to review. Without such an order it returns ErrNoPendingOrder.
func (e *Engine) SubmitProof(ctx context.Context, req ProofRequest) (*types.Order, error) {
	ref := strings.TrimSpace(req.ProofRef)
	if ref == "" {
		return nil, ErrInvalidProof
	}
	kind := req.ProofKind
	if kind == "" {
		kind = types.ProofDocument
	}

	now := e.now()
	rec, err := store.Mutate(ctx, e.store, req.SubscriberID, e.cfg.MaxAttempts, func(rec *types.Record, exists bool) error {
		if !exists || rec.Order == nil || rec.Order.Status != types.StatusPendingProof {
			return ErrNoPendingOrder
		}
		applyProfile(rec, req.Name, req.Handle)
		rec.Order.ProofRef = ref
		rec.Order.ProofKind = kind
		rec.Order.Status = types.StatusPendingReview
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit proof for %d: %w", req.SubscriberID, err)
	}

	order := *rec.Order
	e.logger.Info("proof submitted",
		zap.Int64("subscriber_id", req.SubscriberID),
		zap.String("order_id", order.ID),
		zap.String("proof_kind", string(kind)),
	)

	e.notify(ctx, types.Notification{
		ChatID: req.SubscriberID,
		Text:   messages.ProofReceived(),
	})
	e.notify(ctx, types.Notification{
		ChatID:     e.cfg.OperatorID,
		Text:       messages.OperatorProofReceived(rec.Name, rec.Handle, req.SubscriberID, order.Plan, order.ID),
		Actions:    decisionActions(req.SubscriberID, order.ID),
		Attachment: &types.Attachment{FileID: ref, Kind: kind},
	})
	return &order, nil
}

// Approve grants the subscription for an order under review. Repeating it
// for an order that was already decided returns ErrNoPendingOrder and sends
// nothing.
func (e *Engine) Approve(ctx context.Context, d Decision) (*types.Subscription, error) {
	if err := e.authorize(d); err != nil {
		return nil, err
	}

	now := e.now()
	rec, err := store.Mutate(ctx, e.store, d.SubscriberID, e.cfg.MaxAttempts, func(rec *types.Record, exists bool) error {
		order, err := reviewable(rec, exists, d.OrderID)
		if err != nil {
			return err
		}
		plan, err := pricing.Lookup(order.Plan)
		if err != nil {
			return fmt.Errorf("%w: stored plan %q", ErrInvalidPlan, order.Plan)
		}
		decided := now
		order.Status = types.StatusApproved
		order.DecidedAt = &decided
		rec.Subscription = &types.Subscription{
			Plan:        plan.ID,
			ActivatedAt: now,
			ExpiresAt:   plan.ExpiresAt(now),
		}
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, e.decisionError("approve", d, err)
	}

	sub := *rec.Subscription
	e.logger.Info("order approved",
		zap.Int64("subscriber_id", d.SubscriberID),
		zap.String("order_id", rec.Order.ID),
		zap.String("plan", sub.Plan),
		zap.Timep("expires_at", sub.ExpiresAt),
	)

	e.notify(ctx, types.Notification{
		ChatID: d.SubscriberID,
		Text:   messages.Approved(sub.Plan, e.cfg.VIPLink, sub.ExpiresAt),
	})
	return &sub, nil
}

// Reject closes an order under review without granting anything. An
// existing subscription from an earlier order is left as is.
func (e *Engine) Reject(ctx context.Context, d Decision) (*types.Order, error) {
	if err := e.authorize(d); err != nil {
		return nil, err
	}

	now := e.now()
	rec, err := store.Mutate(ctx, e.store, d.SubscriberID, e.cfg.MaxAttempts, func(rec *types.Record, exists bool) error {
		order, err := reviewable(rec, exists, d.OrderID)
		if err != nil {
			return err
		}
		decided := now
		order.Status = types.StatusRejected
		order.DecidedAt = &decided
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, e.decisionError("reject", d, err)
	}

	order := *rec.Order
	e.logger.Info("order rejected",
		zap.Int64("subscriber_id", d.SubscriberID),
		zap.String("order_id", order.ID),
		zap.String("plan", order.Plan),
	)

	e.notify(ctx, types.Notification{
		ChatID: d.SubscriberID,
		Text:   messages.Rejected(e.cfg.SupportContact),
	})
	return &order, nil
}

func (e *Engine) authorize(d Decision) error {
	if d.OperatorID == 0 || d.OperatorID != e.cfg.OperatorID {
		e.logger.Warn("decision from non-operator ignored",
			zap.Int64("caller_id", d.OperatorID),
			zap.Int64("subscriber_id", d.SubscriberID),
		)
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) decisionError(op string, d Decision, err error) error {
	if errors.Is(err, ErrNoPendingOrder) {
		e.logger.Debug("stale decision ignored",
			zap.String("op", op),
			zap.Int64("subscriber_id", d.SubscriberID),
			zap.String("order_id", d.OrderID),
		)
	}
	return fmt.Errorf("%s order for %d: %w", op, d.SubscriberID, err)
}

func (e *Engine) notify(ctx context.Context, n types.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Warn("notification failed",
			zap.Int64("chat_id", n.ChatID),
			zap.Error(err),
		)
	}
}

// reviewable returns the order when it is under review and, if orderID is
// set, matches it.
func reviewable(rec *types.Record, exists bool, orderID string) (*types.Order, error) {
	if !exists || rec.Order == nil || rec.Order.Status != types.StatusPendingReview {
		return nil, ErrNoPendingOrder
	}
	if orderID != "" && rec.Order.ID != orderID {
		return nil, ErrNoPendingOrder
	}
	return rec.Order, nil
}

func applyProfile(rec *types.Record, name, handle string) {
	if name = strings.TrimSpace(name); name != "" {
		rec.Name = name
	}
	if handle = strings.TrimPrefix(strings.TrimSpace(handle), "@"); handle != "" {
		rec.Handle = handle
	}
}

func decisionActions(subscriberID int64, orderID string) []types.Action {
	return []types.Action{
		{
			Kind:         types.ActionApprove,
			Text:         messages.BtnApprove(),
			CallbackData: ActionData(types.ActionApprove, subscriberID, orderID),
		},
		{
			Kind:         types.ActionReject,
			Text:         messages.BtnReject(),
			CallbackData: ActionData(types.ActionReject, subscriberID, orderID),
		},
	}
}
