package notify

import (
	"context"
	"sync"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

// Sink доставляет одно уведомление
type Sink interface {
	Send(ctx context.Context, n *models.Notification) error
}

// SinkFunc позволяет использовать функцию как Sink
type SinkFunc func(ctx context.Context, n *models.Notification) error

// Send вызывает f
func (f SinkFunc) Send(ctx context.Context, n *models.Notification) error {
	return f(ctx, n)
}

// Publisher публикует уведомление во внешнюю очередь
type Publisher interface {
	PublishNotification(n *models.Notification) error
}

// KafkaSink отправляет уведомления в топик; доставку выполняет consumer
func KafkaSink(p Publisher) Sink {
	return SinkFunc(func(ctx context.Context, n *models.Notification) error {
		return p.PublishNotification(n)
	})
}

// Dispatcher - очередь уведомлений с фиксированным числом воркеров.
// Enqueue никогда не блокирует: при переполнении уведомление отбрасывается.
type Dispatcher struct {
	sink    Sink
	log     *logger.Logger
	queue   chan *models.Notification
	workers int
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	group   *errgroup.Group
}

// NewDispatcher создаёт диспетчер. Воркеры запускаются через Start.
func NewDispatcher(sink Sink, cfg *config.NotifyConfig, log *logger.Logger) *Dispatcher {
	workers, size, timeout := defaultWorkers, defaultQueueSize, defaultSendTimeout
	if cfg != nil {
		if cfg.Workers > 0 {
			workers = cfg.Workers
		}
		if cfg.QueueSize > 0 {
			size = cfg.QueueSize
		}
		if cfg.SendTimeoutSeconds > 0 {
			timeout = time.Duration(cfg.SendTimeoutSeconds) * time.Second
		}
	}
	return &Dispatcher{
		sink:    sink,
		log:     log,
		queue:   make(chan *models.Notification, size),
		workers: workers,
		timeout: timeout,
	}
}

// Start запускает воркеры. Повторный вызов ничего не делает.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for n := range d.queue {
				d.deliver(gctx, n)
			}
			return nil
		})
	}
	d.group = g
	d.log.WithField("workers", d.workers).Info("Notification dispatcher started")
}

// Enqueue ставит уведомление в очередь и сообщает, принято ли оно
func (d *Dispatcher) Enqueue(n *models.Notification) bool {
	if n == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.WithField("kind", n.Kind).Warn("Notification dispatcher closed, dropping notification")
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.log.WithFields(map[string]interface{}{
			"kind":    n.Kind,
			"channel": n.Channel,
		}).Warn("Notification queue full, dropping notification")
		return false
	}
}

// Pending возвращает число уведомлений в очереди
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Stop закрывает очередь и ждёт, пока воркеры доставят оставшееся, не дольше ctx
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	group := d.group
	d.mu.Unlock()

	if group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *models.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sink.Send(sendCtx, n); err != nil {
		d.log.WithError(err).WithFields(map[string]interface{}{
			"notification_id": n.ID,
			"kind":            n.Kind,
			"channel":         n.Channel,
		}).Error("Failed to send notification")
		return
	}
	d.log.WithFields(map[string]interface{}{
		"notification_id": n.ID,
		"kind":            n.Kind,
	}).Debug("Notification sent")
}
