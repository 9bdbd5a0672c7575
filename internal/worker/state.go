package worker

import (
	"context"
	"sync/atomic"
)

const (
	taskPending int32 = iota
	taskRunning
	taskAbandoned
)

type task struct {
	ctx    context.Context
	fn     func(context.Context) error
	done   chan error
	status atomic.Int32
}

// claim moves a pending task to running. It fails when the caller gave up first.
func (t *task) claim() bool {
	return t.status.CompareAndSwap(taskPending, taskRunning)
}

// abandon marks a task the worker has not reached yet so it never runs.
func (t *task) abandon() bool {
	return t.status.CompareAndSwap(taskPending, taskAbandoned)
}

type workerState struct {
	taskCh chan *task
	stopCh chan struct{}
}

func newWorkerState(queueLen int) *workerState {
	return &workerState{
		taskCh: make(chan *task, queueLen),
		stopCh: make(chan struct{}),
	}
}
