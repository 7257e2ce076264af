package relay

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull   = errors.New("relay: queue is full")
	ErrPoolStopped = errors.New("relay: pool is stopped")
)

// HandlerFunc processes one inbound message.
type HandlerFunc func(ctx context.Context, in InboundText) error

// Pool runs handlers on a fixed set of workers. Messages are sharded by
// conversation key, so one conversation is always served by the same worker
// in arrival order while different conversations proceed in parallel.
type Pool struct {
	handle HandlerFunc
	queues []chan InboundText
	logger *slog.Logger

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(log *slog.Logger, workers, queueSize int, handle HandlerFunc) *Pool {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	queues := make([]chan InboundText, workers)
	for i := range queues {
		queues[i] = make(chan InboundText, queueSize)
	}
	return &Pool{
		handle: handle,
		queues: queues,
		logger: log.With(slog.String("component", "relay_pool")),
	}
}

// Start launches the workers. Handlers run with a context derived from ctx
// that is cancelled when Stop gives up waiting.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	for i, q := range p.queues {
		p.wg.Add(1)
		go p.run(ctx, i, q)
	}
}

func (p *Pool) run(ctx context.Context, worker int, queue <-chan InboundText) {
	defer p.wg.Done()
	for in := range queue {
		p.process(ctx, worker, in)
	}
}

func (p *Pool) process(ctx context.Context, worker int, in InboundText) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panic", slog.Int("worker", worker), slog.Any("panic", r))
		}
	}()
	if err := p.handle(ctx, in); err != nil {
		p.logger.Debug("handler returned error", slog.Int("worker", worker), slog.Any("error", err))
	}
}

// Enqueue schedules in without blocking.
func (p *Pool) Enqueue(in InboundText) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queues[p.shard(in.Key())] <- in:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Stop refuses new messages and waits for queued ones to finish. When ctx
// ends first, running handlers are cancelled and ctx.Err is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	cancel := p.cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
}

// Stats is a point-in-time view of the queues.
type Stats struct {
	Workers  int  `json:"workers"`
	Capacity int  `json:"capacity"`
	Queued   int  `json:"queued"`
	Busiest  int  `json:"busiest"`
	Stopped  bool `json:"stopped"`
}

func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Stats{Workers: len(p.queues), Stopped: p.stopped}
	for _, q := range p.queues {
		s.Capacity = cap(q)
		s.Queued += len(q)
		s.Busiest = max(s.Busiest, len(q))
	}
	return s
}
