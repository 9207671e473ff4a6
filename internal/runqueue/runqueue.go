// Package runqueue serializes schedule-run requests that target the same
// division onto the same worker goroutine, so two concurrent requests for
// one division can never race to write the same resources (spec §5's
// "last writer wins" shared-resource concern), while requests for distinct
// divisions still run concurrently.
package runqueue

import (
	"context"
)

// Task is one schedule-run unit of work.
type Task func(ctx context.Context) error

type ctxTask struct {
	ctx  context.Context
	task Task
	done chan error
}

// Dispatcher routes tasks to worker goroutines keyed by division.
type Dispatcher struct {
	workers int
	chans   []chan ctxTask
}

// New starts a Dispatcher with the given worker count. A division with no
// assigned work costs nothing beyond its shard's idle goroutine.
func New(workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{workers: workers, chans: make([]chan ctxTask, workers)}
	for i := 0; i < workers; i++ {
		d.chans[i] = make(chan ctxTask, 64)
		go d.worker(d.chans[i])
	}
	return d
}

// Submit runs task on the worker shard assigned to division and blocks
// until it completes, returning whatever error the task returned. The
// empty division ("no division filter") is its own shard like any other.
func (d *Dispatcher) Submit(ctx context.Context, division string, task Task) error {
	idx := shardFor(division, d.workers)
	done := make(chan error, 1)
	select {
	case d.chans[idx] <- ctxTask{ctx: ctx, task: task, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(in <-chan ctxTask) {
	for item := range in {
		item.done <- item.task(item.ctx)
	}
}

// shardFor maps a division string to a worker index using FNV-1a, so the
// same division always lands on the same shard for the life of the process.
func shardFor(division string, workers int) int {
	var h uint32 = 2166136261
	for i := 0; i < len(division); i++ {
		h ^= uint32(division[i])
		h *= 16777619
	}
	return int(h % uint32(workers))
}
