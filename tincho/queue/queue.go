// Package queue runs UI tasks strictly one at a time in arrival order.
//
// Tasks are appended at the tail with Enqueue. EnqueueUrgent places a task
// ahead of every tail-queued task but behind earlier urgent ones; it is meant
// for continuations scheduled by the running task (for example hiding a
// revealed card after a delay) so that a later event cannot overtake them.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Task is one unit of UI work. It returns only after every visual
// transition it started has completed.
type Task func(ctx context.Context) error

type entry struct {
	task   Task
	seq    uint64
	parent uint64 // seq of the task that scheduled it urgently, 0 for none
}

type Queue struct {
	mu      sync.Mutex
	urgent  []entry
	normal  []entry
	current uint64 // seq of the running task, 0 when idle
	nextSeq uint64
	started bool

	wake chan struct{}
	idle chan struct{} // closed while nothing is pending or running
}

func New() *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		wake: make(chan struct{}, 1),
		idle: idle,
	}
}

// Enqueue appends tasks at the tail in call order. It never blocks.
func (q *Queue) Enqueue(tasks ...Task) {
	if len(tasks) == 0 {
		return
	}
	q.mu.Lock()
	for _, t := range tasks {
		if t == nil {
			continue
		}
		q.normal = append(q.normal, q.newEntryLocked(t, 0))
	}
	q.markBusyLocked()
	q.mu.Unlock()
	q.signal()
}

// EnqueueUrgent schedules task to run right after the current one, ahead of
// all tail-queued tasks. When called while a task is running the new task is
// a continuation of it and is dropped if that task fails.
func (q *Queue) EnqueueUrgent(task Task) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.urgent = append(q.urgent, q.newEntryLocked(task, q.current))
	q.markBusyLocked()
	q.mu.Unlock()
	q.signal()
}

// Start launches the drain loop. Calling it again while it runs is a no-op.
// The loop stops when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go q.run(ctx)
}

// Len returns the number of pending tasks, not counting the running one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.urgent) + len(q.normal)
}

// Running reports whether a task is executing.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current != 0
}

// WaitIdle blocks until nothing is pending or running.
func (q *Queue) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		idle := q.idle
		q.mu.Unlock()
		select {
		case <-idle:
			q.mu.Lock()
			done := q.current == 0 && len(q.urgent)+len(q.normal) == 0
			q.mu.Unlock()
			if done {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *Queue) run(ctx context.Context) {
	defer func() {
		q.mu.Lock()
		q.started = false
		q.mu.Unlock()
	}()
	for {
		e, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		err := q.exec(ctx, e)
		q.finish(e, err)
		if ctx.Err() != nil {
			return
		}
	}
}

func (q *Queue) pop() (entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var e entry
	switch {
	case len(q.urgent) > 0:
		e = q.urgent[0]
		q.urgent[0] = entry{}
		q.urgent = q.urgent[1:]
	case len(q.normal) > 0:
		e = q.normal[0]
		q.normal[0] = entry{}
		q.normal = q.normal[1:]
	default:
		q.markIdleLocked()
		return entry{}, false
	}
	q.current = e.seq
	return e, true
}

func (q *Queue) exec(ctx context.Context, e entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return e.task(ctx)
}

func (q *Queue) finish(e entry, err error) {
	q.mu.Lock()
	q.current = 0
	dropped := 0
	if err != nil {
		dropped = q.dropChildrenLocked(e.seq)
	}
	if len(q.urgent)+len(q.normal) == 0 {
		q.markIdleLocked()
	}
	q.mu.Unlock()

	if err == nil {
		return
	}
	ev := log.Error()
	if errors.Is(err, context.Canceled) {
		ev = log.Debug()
	}
	ev.Err(err).Uint64("task", e.seq).Int("abandoned", dropped).Msg("[queue] task failed")
}

// dropChildrenLocked removes continuations scheduled by seq, transitively.
func (q *Queue) dropChildrenLocked(seq uint64) int {
	doomed := map[uint64]bool{seq: true}
	kept := q.urgent[:0]
	dropped := 0
	for _, e := range q.urgent {
		if doomed[e.parent] {
			doomed[e.seq] = true
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.urgent); i++ {
		q.urgent[i] = entry{}
	}
	q.urgent = kept
	return dropped
}

func (q *Queue) newEntryLocked(t Task, parent uint64) entry {
	q.nextSeq++
	return entry{task: t, seq: q.nextSeq, parent: parent}
}

func (q *Queue) markBusyLocked() {
	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}
}

func (q *Queue) markIdleLocked() {
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
