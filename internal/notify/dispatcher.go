package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/types"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrStopped   = errors.New("notification dispatcher stopped")
)

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Dispatcher delivers notifications from a bounded queue on a fixed pool of
// workers. Notify never blocks on the network, so callers may use it right
// after a store commit.
type Dispatcher struct {
	sender  Sender
	logger  *zap.Logger
	workers int
	timeout time.Duration
	queue   chan types.Notification
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	stopped bool
}

func NewDispatcher(sender Sender, config Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		logger:  logger.Named("notify"),
		workers: config.Workers,
		timeout: config.Timeout,
		queue:   make(chan types.Notification, config.QueueSize),
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.stopped {
		return
	}
	d.running = true

	d.logger.Info("dispatcher started", zap.Int("workers", d.workers), zap.Int("queue", cap(d.queue)))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop rejects new notifications and waits for queued ones to be sent.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Notify queues n for delivery. Failures are logged here as well as returned.
func (d *Dispatcher) Notify(ctx context.Context, n types.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.Warn("notification dropped", zap.Int64("chat_id", n.ChatID), zap.Error(ErrStopped))
		return ErrStopped
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.logger.Warn("notification dropped", zap.Int64("chat_id", n.ChatID), zap.Error(ErrQueueFull))
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for n := range d.queue {
		d.send(id, n)
	}
}

func (d *Dispatcher) send(worker int, n types.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, n); err != nil {
		d.logger.Error("notification failed",
			zap.Int("worker", worker),
			zap.Int64("chat_id", n.ChatID),
			zap.Error(err),
		)
	}
}
