// Package queue is the internal work queue decoupling event handlers from
// the slower provisioning workflow. Single worker, strict FIFO, in-process,
// best-effort: jobs are not durable across a restart.
package queue

import (
	"context"
	"log"

	"github.com/google/uuid"
)

type job struct {
	id   string
	name string
	fn   func(ctx context.Context) error
}

type Queue struct {
	jobs chan job
	done chan struct{}
}

func New(size int) *Queue {
	return &Queue{
		jobs: make(chan job, size),
		done: make(chan struct{}),
	}
}

// Start launches the single worker goroutine.
func (q *Queue) Start() {
	go q.run()
	log.Println("[Queue] Worker started")
}

// Stop drains nothing: pending jobs are dropped, matching the best-effort
// contract.
func (q *Queue) Stop() {
	close(q.done)
	log.Println("[Queue] Worker stopped")
}

// Enqueue accepts a job without blocking. When the buffer is saturated the
// job is dropped and logged; a later event or reconciliation sweep is
// expected to re-trigger the work.
func (q *Queue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	j := job{id: uuid.NewString(), name: name, fn: fn}
	select {
	case q.jobs <- j:
		log.Printf("[Queue] Accepted %s (%s)", j.name, j.id)
		return true
	default:
		log.Printf("[Queue] Saturated, dropping %s", j.name)
		return false
	}
}

// Len reports how many jobs are waiting in the buffer.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) run() {
	for {
		select {
		case <-q.done:
			return
		case j := <-q.jobs:
			q.process(j)
		}
	}
}

func (q *Queue) process(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Queue] Panic in %s (%s): %v", j.name, j.id, r)
		}
	}()

	if err := j.fn(context.Background()); err != nil {
		log.Printf("[Queue] Job %s (%s) failed: %v", j.name, j.id, err)
	}
}
