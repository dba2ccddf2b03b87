package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type task struct {
	name     string
	run      func(ctx context.Context) error
	attempts int
}

// Queue is a fixed-pool background job runner. Failed jobs are retried with
// linear backoff up to maxRetries attempts, then dropped with an error log.
type Queue struct {
	tasks      chan *task
	workers    int
	maxRetries int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewQueue(workers, maxRetries int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Queue{
		tasks:      make(chan *task, 256),
		workers:    workers,
		maxRetries: maxRetries,
	}
}

func (q *Queue) Start() {
	q.once.Do(func() {
		q.ctx, q.cancel = context.WithCancel(context.Background())
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work()
		}
		log.Info().Int("workers", q.workers).Msg("background queue started")
	})
}

// Stop drains nothing: queued tasks that have not started are abandoned.
func (q *Queue) Stop() {
	if q.cancel == nil {
		return
	}
	q.cancel()
	q.wg.Wait()
}

// Enqueue schedules a job. Never blocks the caller: when the buffer is full
// the job is dropped with an error log rather than stalling a request.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) {
	t := &task{name: name, run: run}
	select {
	case q.tasks <- t:
	default:
		log.Error().Str("job", name).Msg("job queue full, dropping job")
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case t := <-q.tasks:
			q.execute(t)
		}
	}
}

func (q *Queue) execute(t *task) {
	t.attempts++
	err := t.run(q.ctx)
	if err == nil {
		return
	}

	if t.attempts > q.maxRetries {
		log.Error().Err(err).Str("job", t.name).Int("attempts", t.attempts).Msg("job failed, giving up")
		return
	}

	backoff := time.Duration(t.attempts) * time.Second
	log.Warn().Err(err).Str("job", t.name).Int("attempt", t.attempts).Dur("backoff", backoff).Msg("job failed, retrying")

	time.AfterFunc(backoff, func() {
		select {
		case q.tasks <- t:
		case <-q.ctx.Done():
		}
	})
}
