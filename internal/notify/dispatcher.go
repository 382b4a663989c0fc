package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/internal/metrics"
	"github.com/d60-Lab/supportdesk/pkg/logger"
)

type job struct {
	email Email
	enqAt time.Time
}

// Dispatcher 本地异步发信队列：队列满时丢弃并告警，发送失败只记录日志
type Dispatcher struct {
	notifier Notifier
	ch       chan job
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(notifier Notifier, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Dispatcher{notifier: notifier, ch: make(chan job, queueSize), timeout: 10 * time.Second}
}

// Start 启动 workers 个发送协程，返回的函数关闭队列并等待排空（受 ctx 限制）
func (d *Dispatcher) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.ch {
				d.deliver(j)
			}
		}()
	}
	return func(ctx context.Context) error {
		d.mu.Lock()
		if !d.closed {
			d.closed = true
			close(d.ch)
		}
		d.mu.Unlock()

		done := make(chan struct{})
		go func() { d.wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	metrics.NotificationQueueDepth.Set(float64(len(d.ch)))
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Send(ctx, j.email); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		logger.Warn("notification send failed", zap.String("to", j.email.To), zap.String("subject", j.email.Subject), zap.Error(err))
	} else {
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	}
	metrics.NotificationLatency.Observe(time.Since(j.enqAt).Seconds())
}

// Enqueue 非阻塞入队；返回 false 表示被丢弃
func (d *Dispatcher) Enqueue(email Email) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		logger.Warn("dispatcher stopped, drop email", zap.String("to", email.To))
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return false
	}
	select {
	case d.ch <- job{email: email, enqAt: time.Now()}:
		metrics.NotificationQueueDepth.Set(float64(len(d.ch)))
		return true
	default:
		logger.Warn("notification queue full, drop email", zap.String("to", email.To), zap.String("subject", email.Subject))
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// QueueLen 返回当前队列长度（采样值）
func (d *Dispatcher) QueueLen() int { return len(d.ch) }
