package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) task(name string) Task {
	return func(context.Context) error {
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.WaitIdle(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEnqueueRunsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New()
	rec := &recorder{}
	q.Enqueue(rec.task("a"), rec.task("b"))
	q.Enqueue(rec.task("c"))
	q.Start(ctx)
	waitIdle(t, q)

	if got := rec.got(); !equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestUrgentPreemptsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New()
	rec := &recorder{}
	release := make(chan struct{})
	started := make(chan struct{})

	q.Enqueue(func(ctx context.Context) error {
		close(started)
		<-release
		return rec.task("running")(ctx)
	})
	q.Start(ctx)
	<-started

	q.Enqueue(rec.task("n1"))
	q.EnqueueUrgent(rec.task("u1"))
	q.Enqueue(rec.task("n2"))
	q.EnqueueUrgent(rec.task("u2"))
	close(release)
	waitIdle(t, q)

	want := []string{"running", "u1", "u2", "n1", "n2"}
	if got := rec.got(); !equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestUrgentFromInsideTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New()
	rec := &recorder{}
	q.Enqueue(
		func(ctx context.Context) error {
			q.EnqueueUrgent(rec.task("hide"))
			return rec.task("reveal")(ctx)
		},
		rec.task("next"),
	)
	q.Start(ctx)
	waitIdle(t, q)

	want := []string{"reveal", "hide", "next"}
	if got := rec.got(); !equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestAtMostOneRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New()
	var running, peak atomic.Int32
	task := func(context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return nil
	}
	q.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if j%3 == 0 {
					q.EnqueueUrgent(task)
				} else {
					q.Enqueue(task, task)
				}
			}
		}()
	}
	wg.Wait()
	waitIdle(t, q)

	if p := peak.Load(); p != 1 {
		t.Fatalf("peak concurrency = %d, want 1", p)
	}
}

func TestFailureClearsSlotAndAbandonsContinuations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New()
	rec := &recorder{}
	q.Enqueue(
		func(ctx context.Context) error {
			q.EnqueueUrgent(rec.task("continuation"))
			return errors.New("boom")
		},
		func(ctx context.Context) error {
			panic("kaboom")
		},
		rec.task("after"),
	)
	q.Start(ctx)
	waitIdle(t, q)

	if got := rec.got(); !equal(got, []string{"after"}) {
		t.Fatalf("order = %v, want [after]", got)
	}
	if q.Running() {
		t.Fatalf("running slot not cleared")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New()
	rec := &recorder{}
	q.Start(ctx)
	q.Start(ctx)
	q.Start(ctx)
	for i := 0; i < 20; i++ {
		q.Enqueue(rec.task("t"))
	}
	waitIdle(t, q)
	if n := len(rec.got()); n != 20 {
		t.Fatalf("ran %d tasks, want 20", n)
	}
}

func TestWaitsForArrivalsWhenEmpty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New()
	q.Start(ctx)
	waitIdle(t, q)

	done := make(chan struct{})
	q.Enqueue(func(context.Context) error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("task enqueued after idle never ran")
	}
}
