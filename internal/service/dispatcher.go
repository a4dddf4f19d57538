package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/domain"
)

// MessageHandler answers a single message
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.Message) (domain.Reply, error)
}

// Result is the outcome of a submitted message
type Result struct {
	Reply domain.Reply
	Err   error
}

type job struct {
	ctx    context.Context
	msg    domain.Message
	result chan Result
}

// Dispatcher runs messages with bounded global concurrency while keeping
// each user's messages in submission order.
type Dispatcher struct {
	handler   MessageHandler
	sem       chan struct{}
	queueSize int
	logger    *zap.Logger

	mu     sync.Mutex
	queues map[string][]job
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given worker and queue limits
func NewDispatcher(handler MessageHandler, workers, queueSize int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handler:   handler,
		sem:       make(chan struct{}, workers),
		queueSize: queueSize,
		logger:    logger.Named("dispatcher"),
		queues:    make(map[string][]job),
	}
}

// Submit enqueues msg behind the user's pending messages. The returned
// channel receives exactly one Result.
func (d *Dispatcher) Submit(ctx context.Context, msg domain.Message) <-chan Result {
	out := make(chan Result, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		out <- Result{Err: context.Canceled}
		return out
	}
	pending, active := d.queues[msg.UserID]
	if d.queueSize > 0 && len(pending) >= d.queueSize {
		d.mu.Unlock()
		d.logger.Warn("queue full", zap.String("user_id", msg.UserID), zap.Int("pending", len(pending)))
		out <- Result{Err: domain.ErrQueueFull}
		return out
	}
	d.queues[msg.UserID] = append(pending, job{ctx: ctx, msg: msg, result: out})
	if !active {
		d.wg.Add(1)
		go d.drain(msg.UserID)
	}
	d.mu.Unlock()

	return out
}

// drain runs the user's queue until it is empty, then retires the user.
func (d *Dispatcher) drain(userID string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		pending := d.queues[userID]
		if len(pending) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		next := pending[0]
		d.queues[userID] = pending[1:]
		d.mu.Unlock()

		next.result <- d.run(next)
	}
}

func (d *Dispatcher) run(j job) Result {
	select {
	case d.sem <- struct{}{}:
	case <-j.ctx.Done():
		return Result{Err: j.ctx.Err()}
	}
	defer func() { <-d.sem }()

	if err := j.ctx.Err(); err != nil {
		return Result{Err: err}
	}
	reply, err := d.handler.Handle(j.ctx, j.msg)
	return Result{Reply: reply, Err: err}
}

// Pending returns the number of queued messages for a user, excluding the
// one currently running.
func (d *Dispatcher) Pending(userID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues[userID])
}

// Close stops accepting messages and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
