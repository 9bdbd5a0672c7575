package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultQueueLen    = 16
	DefaultIdleTimeout = 5 * time.Minute
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker manager stopped")
)

type Config struct {
	QueueLen    int
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Manager runs tasks one at a time per key, in submission order. Every key
// gets its own goroutine, started on demand and retired after IdleTimeout.
type Manager struct {
	queueLen    int
	idleTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	workers map[string]*workerState
	stopped bool
	wg      sync.WaitGroup
}

func NewManager(cfg Config) *Manager {
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = DefaultQueueLen
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		queueLen:    cfg.QueueLen,
		idleTimeout: cfg.IdleTimeout,
		logger:      cfg.Logger,
		workers:     make(map[string]*workerState),
	}
}

// Do queues fn on the worker for key and waits for its result. A task whose
// ctx ends before the worker picks it up is dropped and ctx.Err() returned;
// once started, Do waits for fn to return.
func (m *Manager) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	state := m.ensureWorkerLocked(key)
	select {
	case state.taskCh <- t:
	default:
		m.mu.Unlock()
		return ErrQueueFull
	}
	m.mu.Unlock()

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		if t.abandon() {
			return ctx.Err()
		}
		return <-t.done
	}
}

// Stop retires every worker after its running task. Queued tasks fail with
// ErrStopped, as does any later Do.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	for _, state := range m.workers {
		close(state.stopCh)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) workerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

func (m *Manager) ensureWorkerLocked(key string) *workerState {
	if state, ok := m.workers[key]; ok {
		return state
	}
	state := newWorkerState(m.queueLen)
	m.workers[key] = state
	m.wg.Add(1)
	go m.runWorker(key, state)
	debugLog(m.logger, "worker started", "key", key)
	return state
}

func (m *Manager) runWorker(key string, state *workerState) {
	defer m.wg.Done()

	idle := time.NewTimer(m.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-state.stopCh:
			m.shutdown(key, state, nil)
			return
		case t := <-state.taskCh:
			// no task starts once Stop has closed stopCh
			if isClosed(state.stopCh) {
				m.shutdown(key, state, t)
				return
			}
			m.run(key, t)
			idle.Reset(m.idleTimeout)
		case <-idle.C:
			// Do enqueues under m.mu, so an empty queue here stays empty
			// until the worker is gone from the map.
			m.mu.Lock()
			if len(state.taskCh) > 0 {
				m.mu.Unlock()
				idle.Reset(m.idleTimeout)
				continue
			}
			delete(m.workers, key)
			remaining := len(m.workers)
			m.mu.Unlock()
			debugLog(m.logger, "worker idle, exiting", "key", key, "workers", remaining)
			return
		}
	}
}

func (m *Manager) run(key string, t *task) {
	if !t.claim() {
		return
	}
	t.done <- m.safeCall(key, t)
}

func (m *Manager) safeCall(key string, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("worker task panicked", "key", key, "panic", r)
			err = fmt.Errorf("worker task panicked: %v", r)
		}
	}()
	return t.fn(t.ctx)
}

// shutdown fails pending (if any) and every queued task with ErrStopped.
func (m *Manager) shutdown(key string, state *workerState, pending *task) {
	if pending != nil && pending.claim() {
		pending.done <- ErrStopped
	}
	m.drain(state)
	debugLog(m.logger, "worker stopped", "key", key)
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (m *Manager) drain(state *workerState) {
	for {
		select {
		case t := <-state.taskCh:
			if t.claim() {
				t.done <- ErrStopped
			}
		default:
			return
		}
	}
}
