package scheduler

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

// ErrQueueFull is returned by Enqueue when a run is already queued. Runs can
// take minutes, so the queue stays shallow on purpose.
var ErrQueueFull = errors.New("scheduler: run queue full")

type job struct {
	id  string
	req model.BookingRequest
}

// Runner executes booking requests one at a time on a background worker.
// The trigger surface enqueues and returns immediately; results land in the
// notification channel and in logs.
type Runner struct {
	sched *Scheduler
	queue chan job
	log   zerolog.Logger
}

// NewRunner builds a Runner with the given queue depth.
func NewRunner(s *Scheduler, queueSize int, log zerolog.Logger) *Runner {
	return &Runner{
		sched: s,
		queue: make(chan job, queueSize),
		log:   log,
	}
}

// Enqueue accepts a request for background execution and returns its run id.
func (r *Runner) Enqueue(req model.BookingRequest) (string, error) {
	j := job{id: uuid.NewString(), req: req}
	select {
	case r.queue <- j:
		r.log.Info().Str("run_id", j.id).Str("mode", req.Mode).Msg("booking run queued")
		return j.id, nil
	default:
		return "", ErrQueueFull
	}
}

// Start runs the worker loop until ctx is cancelled. Call it from its own
// goroutine.
func (r *Runner) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			if _, err := r.sched.RunWithID(ctx, j.id, j.req); err != nil {
				r.log.Error().Err(err).Str("run_id", j.id).Msg("booking run failed")
			}
		}
	}
}
