package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/internal/messages"
	"github.com/BatmanBruc/vip-orders-bot/store"
	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	day          = 24 * time.Hour
	reminderDays = 2
)

// errNothingToDo aborts a mutation whose fresh record no longer needs a sweep
// transition.
var errNothingToDo = errors.New("nothing to do")

type Config struct {
	Hour        int
	Minute      int
	RunOnStart  bool
	MaxAttempts int
}

type SweepResult struct {
	RunID    string
	Scanned  int
	Reminded int
	Expired  int
	Failed   int
}

// Scheduler runs the daily expiry sweep: it reminds subscribers whose plan
// ends within two days and removes subscriptions that have run out.
type Scheduler struct {
	store    types.OrderStore
	notifier types.Notifier
	config   Config
	logger   *zap.Logger
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewScheduler(s types.OrderStore, notifier types.Notifier, config Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Hour < 0 || config.Hour > 23 {
		config.Hour = 12
	}
	if config.Minute < 0 || config.Minute > 59 {
		config.Minute = 0
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = store.DefaultAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:    s,
		notifier: notifier,
		config:   config,
		logger:   logger.Named("scheduler"),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		zap.Int("hour", s.config.Hour),
		zap.Int("minute", s.config.Minute),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)

	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.runSweep()
	}

	for {
		now := s.now()
		timer := time.NewTimer(NextRun(now, s.config.Hour, s.config.Minute).Sub(now))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runSweep()
		}
	}
}

func (s *Scheduler) runSweep() {
	res, err := s.Sweep(s.ctx, s.now())
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("sweep failed", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

// NextRun returns the first hour:minute strictly after now, in now's location.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

type sweepAction int

const (
	actionNone sweepAction = iota
	actionRemind
	actionExpire
)

func decide(sub *types.Subscription, now time.Time) sweepAction {
	if sub == nil || sub.ExpiresAt == nil {
		return actionNone
	}
	remaining := sub.ExpiresAt.Sub(now)
	switch {
	case remaining <= 0:
		return actionExpire
	case remaining <= reminderDays*day && !sub.ReminderSent:
		return actionRemind
	}
	return actionNone
}

// Sweep applies expiry transitions to every record as of now. A record that
// fails is logged and counted and the sweep moves on; only a listing error
// stops it early.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	res := SweepResult{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", res.RunID))
	started := time.Now()

	for rec, err := range s.store.All(ctx) {
		if err != nil {
			return res, err
		}
		res.Scanned++
		if decide(rec.Subscription, now) == actionNone {
			continue
		}

		action, sub, err := s.apply(ctx, rec.SubscriberID, now)
		if err != nil {
			res.Failed++
			log.Warn("sweep transition failed", zap.Int64("subscriber_id", rec.SubscriberID), zap.Error(err))
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			continue
		}

		switch action {
		case actionRemind:
			res.Reminded++
			s.notify(ctx, rec.SubscriberID, messages.ExpiresSoon(sub.Plan, *sub.ExpiresAt))
		case actionExpire:
			res.Expired++
			s.notify(ctx, rec.SubscriberID, messages.Expired(sub.Plan))
			log.Info("subscription expired", zap.Int64("subscriber_id", rec.SubscriberID), zap.String("plan", sub.Plan))
		}
	}

	log.Info("sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("reminded", res.Reminded),
		zap.Int("expired", res.Expired),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(started)),
	)
	return res, nil
}

// apply re-evaluates the record inside a mutation so a concurrent renewal or
// approval wins over a stale listing snapshot. It returns the subscription as
// it was before the transition.
func (s *Scheduler) apply(ctx context.Context, subscriberID int64, now time.Time) (sweepAction, *types.Subscription, error) {
	var (
		action sweepAction
		before types.Subscription
	)
	_, err := store.Mutate(ctx, s.store, subscriberID, s.config.MaxAttempts, func(rec *types.Record, exists bool) error {
		if !exists {
			return errNothingToDo
		}
		action = decide(rec.Subscription, now)
		switch action {
		case actionExpire:
			before = *rec.Subscription
			rec.Subscription = nil
		case actionRemind:
			before = *rec.Subscription
			rec.Subscription.ReminderSent = true
		default:
			return errNothingToDo
		}
		rec.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return actionNone, nil, nil
	}
	if err != nil {
		return actionNone, nil, err
	}
	return action, &before, nil
}

func (s *Scheduler) notify(ctx context.Context, chatID int64, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, types.Notification{ChatID: chatID, Text: text}); err != nil {
		s.logger.Warn("sweep notification failed", zap.Int64("subscriber_id", chatID), zap.Error(err))
	}
}
