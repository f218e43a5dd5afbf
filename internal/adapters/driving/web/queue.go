package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// jobStatus is the lifecycle of one description-generation job.
type jobStatus int

const (
	jobPending jobStatus = iota
	jobGenerating
	jobSuccess
	jobFailed
)

// descriptionJob tracks one knowledge base's generation job. The
// generation counter fences late results: a run that finishes after the
// job was requeued compares generations and drops its outcome.
type descriptionJob struct {
	id          string
	name        string
	generation  uint64
	status      jobStatus
	description string
	startedAt   time.Time
}

// descriptionQueue runs description generation in the background with
// bounded concurrency so the page stays responsive while the search API
// is interrogated. Jobs are keyed by knowledge-base name.
type descriptionQueue struct {
	metadata driving.MetadataService

	workers    int
	jobTimeout time.Duration

	mu   sync.Mutex
	jobs map[string]*descriptionJob

	tasks   chan string
	baseCtx context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func newDescriptionQueue(metadata driving.MetadataService, workers int, jobTimeout time.Duration) *descriptionQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &descriptionQueue{
		metadata:   metadata,
		workers:    workers,
		jobTimeout: jobTimeout,
		jobs:       make(map[string]*descriptionJob),
		tasks:      make(chan string, 64),
		baseCtx:    ctx,
		cancel:     cancel,
	}
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue queues description generation for one knowledge base. A job
// already pending or generating reports as a duplicate; a finished job
// is requeued under a fresh generation.
func (q *descriptionQueue) Enqueue(name string) queueReply {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[name]
	if ok && (job.status == jobPending || job.status == jobGenerating) {
		return queueReply{Status: "duplicate", Name: name, JobID: job.id}
	}
	if ok {
		job.generation++
		job.status = jobPending
		job.id = uuid.NewString()
		job.description = ""
	} else {
		job = &descriptionJob{id: uuid.NewString(), name: name, status: jobPending}
		q.jobs[name] = job
	}

	select {
	case q.tasks <- name:
	default:
		job.status = jobFailed
		return queueReply{Status: "error", Name: name}
	}
	return queueReply{Status: "queued", Name: name, JobID: job.id}
}

// Status reports one job's current state for the page's polling loop.
func (q *descriptionQueue) Status(name string) taskStatusReply {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[name]
	if !ok {
		return taskStatusReply{Status: "unknown"}
	}
	switch job.status {
	case jobGenerating:
		return taskStatusReply{
			Status:      "generating",
			Description: domain.LegacyDescription(domain.DescriptionPending, ""),
			Elapsed:     time.Since(job.startedAt).Seconds(),
		}
	case jobSuccess:
		return taskStatusReply{Status: "success", Description: job.description}
	case jobFailed:
		return taskStatusReply{Status: "failed", Description: domain.LegacyDescription(domain.DescriptionFailed, "")}
	default:
		return taskStatusReply{Status: "pending", Description: domain.LegacyDescription(domain.DescriptionPending, "")}
	}
}

// Close stops the workers. Running jobs are cancelled through their
// context rather than waited for.
func (q *descriptionQueue) Close() {
	q.once.Do(q.cancel)
}

func (q *descriptionQueue) worker() {
	for {
		select {
		case <-q.baseCtx.Done():
			return
		case name := <-q.tasks:
			q.run(name)
		}
	}
}

// run executes one generation job. The metadata service writes the
// outcome to the registry itself; the queue only records the job state
// the page polls on.
func (q *descriptionQueue) run(name string) {
	q.mu.Lock()
	job, ok := q.jobs[name]
	if !ok || job.status != jobPending {
		q.mu.Unlock()
		return
	}
	job.status = jobGenerating
	job.startedAt = time.Now()
	gen := job.generation
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(q.baseCtx, q.jobTimeout)
	defer cancel()
	outcome, err := q.metadata.Sync(ctx, name, domain.SyncOptions{Rounds: domain.DefaultSyncRounds})

	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok = q.jobs[name]
	if !ok || job.generation != gen {
		// Requeued while this run was in flight; its result is stale.
		return
	}
	if err != nil {
		logger.Warn("description generation for %s: %v", name, err)
		job.status = jobFailed
		return
	}
	job.status = jobSuccess
	job.description = outcome.Description
}
