// Package worker publishes record events off the relay's request path.
//
// Records are persisted synchronously before the relay returns; only the
// event announcing each persisted record goes through this pool, so a slow
// or unreachable broker never holds up a client.
package worker

import (
	"cmp"
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/pkg/eventstream"
	"github.com/papercomputeco/taperelay/pkg/record"
)

const (
	defaultNumWorkers     uint = 3
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Job announces one persisted record.
type Job struct {
	Record *record.Record

	// Sink names the sink the record was persisted to.
	Sink string
}

// Config configures a Pool. Zero values take defaults.
type Config struct {
	Publisher eventstream.Publisher

	NumWorkers uint
	QueueSize  uint

	// PublishTimeout bounds each publish call.
	PublishTimeout time.Duration

	Logger *zap.Logger

	// now is replaced in tests.
	now func() time.Time
}

// Stats counts jobs by outcome since the pool started.
type Stats struct {
	Published uint64
	Failed    uint64
	Dropped   uint64
}

// Pool publishes events for queued jobs on a fixed set of goroutines.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	closeOnce sync.Once

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewPool applies defaults to c and starts the workers.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("worker pool requires a publisher")
	}

	c.NumWorkers = cmp.Or(c.NumWorkers, defaultNumWorkers)
	c.QueueSize = cmp.Or(c.QueueSize, defaultJobQueueSize)
	c.PublishTimeout = cmp.Or(c.PublishTimeout, defaultPublishTimeout)
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, errors.New("worker pool: NumWorkers exceeds max int")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger.With(zap.String("component", "event_worker")),
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.run(i)
	}

	return p, nil
}

// Enqueue queues job without blocking. A full queue drops the job and
// returns false.
func (p *Pool) Enqueue(job Job) bool {
	fields := []zap.Field{
		zap.String("record_id", job.Record.ID),
		zap.String("sink", job.Sink),
	}

	select {
	case p.queue <- job:
		p.logger.Debug("event queued", fields...)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("event queue full, event dropped", fields...)
		return false
	}
}

// Stats returns a snapshot of the outcome counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Close stops accepting jobs and waits until every queued event has been
// published or has failed. Enqueue must not be called after Close. Extra
// calls are no-ops.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()

		s := p.Stats()
		p.logger.Info("event workers drained",
			zap.Uint64("published", s.Published),
			zap.Uint64("failed", s.Failed),
			zap.Uint64("dropped", s.Dropped),
		)
	})
}

func (p *Pool) run(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.publish(job)
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}

// publish sends one event. Failures are counted and logged, never retried.
func (p *Pool) publish(job Job) {
	event := eventstream.NewRecordPersistedEvent(job.Record, job.Sink, p.config.now())

	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishRecord(ctx, event); err != nil {
		p.failed.Add(1)
		p.logger.Error("event publish failed",
			zap.String("record_id", job.Record.ID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}

	p.published.Add(1)
	p.logger.Debug("event published",
		zap.String("record_id", job.Record.ID),
		zap.String("event_id", event.EventID),
	)
}
