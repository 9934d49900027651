// Package graceperiod runs per-key recurring checks that expire pending entities.
//
// A caller registers a key after persisting a one-time code. Every interval the
// registry reads the entity through a Gateway: a resolved or missing entity stops
// the job, a pending entity past its grace duration gets the cleanup action run
// once before the job stops. Storage errors never trigger cleanup; the job just
// tries again on the next tick.
package graceperiod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrInvalidJob is returned by Register for a malformed registration.
	ErrInvalidJob = errors.New("invalid grace period job")
	// ErrClosed is returned by Register after CancelAll.
	ErrClosed = errors.New("grace period registry closed")
	// ErrNotPending may be returned by a CleanupAction whose conditional write
	// found the entity already resolved or gone.
	ErrNotPending = errors.New("entity no longer pending")
)

// State is the resolution state of a pending entity as seen by the checker.
type State int

const (
	StateAbsent State = iota
	StatePending
	StateResolved
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	default:
		return "absent"
	}
}

// Entity is the persisted record a job watches.
type Entity struct {
	Key       string
	CreatedAt time.Time
	State     State
}

// Gateway reads the current state of an entity. A missing entity is reported
// as StateAbsent with a nil error; errors are reserved for failed reads.
type Gateway interface {
	Get(ctx context.Context, key string) (Entity, error)
}

// CleanupAction runs once when an entity expires. It receives the entity as
// last read so implementations can condition their write on it.
type CleanupAction func(ctx context.Context, e Entity) error

// Job is the handle for one registered grace period.
type Job struct {
	key      string
	interval time.Duration
	duration time.Duration
	deadline time.Time
	action   CleanupAction
	ticker   Ticker
	canceled atomic.Bool

	// gen counts re-registrations; guarded by Registry.mu.
	gen uint64
}

// Key returns the key the job watches.
func (j *Job) Key() string { return j.key }

// Interval returns the time between checks.
func (j *Job) Interval() time.Duration { return j.interval }

// Duration returns the grace duration measured from the entity's CreatedAt.
func (j *Job) Duration() time.Duration { return j.duration }

// Deadline is registration time plus Duration.
func (j *Job) Deadline() time.Time { return j.deadline }

// Active reports whether the job is still ticking.
func (j *Job) Active() bool { return !j.canceled.Load() }

func (j *Job) stop() {
	if j.canceled.CompareAndSwap(false, true) {
		j.ticker.Stop()
	}
}

// Registry owns the active jobs for one workflow. The zero value is not usable;
// construct with New.
type Registry struct {
	name    string
	gateway Gateway
	clock   Clock
	logger  *slog.Logger

	mu     sync.Mutex
	jobs   map[string]*Job
	closed bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New builds a registry reading entity state through gw.
func New(name string, gw Gateway, opts ...Option) *Registry {
	r := &Registry{
		name:    name,
		gateway: gw,
		clock:   RealClock{},
		logger:  slog.Default(),
		jobs:    make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("registry", name)
	return r
}

// Register starts a grace period for key, or returns the job already running for it.
func (r *Registry) Register(key string, interval, duration time.Duration, action CleanupAction) (*Job, error) {
	switch {
	case key == "":
		return nil, fmt.Errorf("empty key: %w", ErrInvalidJob)
	case interval <= 0:
		return nil, fmt.Errorf("interval must be positive, got %s: %w", interval, ErrInvalidJob)
	case duration <= 0:
		return nil, fmt.Errorf("duration must be positive, got %s: %w", duration, ErrInvalidJob)
	case action == nil:
		return nil, fmt.Errorf("nil cleanup action: %w", ErrInvalidJob)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if existing, ok := r.jobs[key]; ok {
		// A tick in flight must not stop a job someone just re-armed.
		existing.gen++
		r.logger.Info("grace period already registered", "key", key, "deadline", existing.deadline)
		return existing, nil
	}

	job := &Job{
		key:      key,
		interval: interval,
		duration: duration,
		deadline: r.clock.Now().Add(duration),
		action:   action,
		ticker:   r.clock.NewTicker(),
	}
	r.jobs[key] = job
	job.ticker.Start(interval, func() { r.tick(job) })
	r.logger.Info("grace period registered", "key", key, "interval", interval, "deadline", job.deadline)
	return job, nil
}

// Cancel stops the job for key. Unknown keys are ignored.
func (r *Registry) Cancel(key string) {
	r.mu.Lock()
	job, ok := r.jobs[key]
	if ok {
		delete(r.jobs, key)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("cancel for unknown key", "key", key)
		return
	}
	job.stop()
	r.logger.Info("grace period canceled", "key", key)
}

// CancelAll stops every job and rejects further registrations.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	jobs := r.jobs
	r.jobs = make(map[string]*Job)
	r.closed = true
	r.mu.Unlock()

	for _, job := range jobs {
		job.stop()
	}
	r.logger.Info("all grace periods canceled", "count", len(jobs))
}

// Lookup returns the active job for key.
func (r *Registry) Lookup(key string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[key]
	return job, ok
}

// Len reports the number of active jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// generation returns the job's re-registration count.
func (r *Registry) generation(job *Job) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return job.gen
}

// finish removes job if it is still the one registered under its key and it
// was not re-registered since gen was read. A re-registered job keeps ticking
// so the next check sees the new entity. Reports whether the job stopped.
func (r *Registry) finish(job *Job, gen uint64) bool {
	r.mu.Lock()
	if r.jobs[job.key] == job {
		if job.gen != gen {
			r.mu.Unlock()
			return false
		}
		delete(r.jobs, job.key)
	}
	r.mu.Unlock()
	job.stop()
	return true
}
