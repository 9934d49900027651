package graceperiod

import (
	"context"
	"errors"
	"time"
)

type verdict int

const (
	verdictWait verdict = iota
	verdictDone
	verdictExpired
)

// decide classifies an entity at time now. Expiry is inclusive: an entity whose
// age equals the grace duration has expired.
func decide(e Entity, now time.Time, grace time.Duration) verdict {
	switch e.State {
	case StatePending:
		if now.Sub(e.CreatedAt) >= grace {
			return verdictExpired
		}
		return verdictWait
	default:
		return verdictDone
	}
}

// tick runs one check for job. Any storage error leaves the job armed so the
// next tick retries; cleanup only happens after a fresh read still shows the
// entity pending and past its deadline.
func (r *Registry) tick(job *Job) {
	if !job.Active() {
		return
	}
	ctx := context.Background()
	log := r.logger.With("key", job.key)
	gen := r.generation(job)

	e, err := r.gateway.Get(ctx, job.key)
	if err != nil {
		log.Warn("grace period check failed, retrying next tick", "err", err)
		return
	}
	switch decide(e, r.clock.Now(), job.duration) {
	case verdictWait:
		return
	case verdictDone:
		if r.finish(job, gen) {
			log.Info("entity no longer pending, grace period stopped", "state", e.State.String())
		}
		return
	}

	e, err = r.gateway.Get(ctx, job.key)
	if err != nil {
		log.Warn("grace period re-check failed, retrying next tick", "err", err)
		return
	}
	switch decide(e, r.clock.Now(), job.duration) {
	case verdictWait:
		// A fresh code was issued between the two reads.
		return
	case verdictDone:
		log.Info("entity resolved before cleanup, skipping", "state", e.State.String())
		r.finish(job, gen)
		return
	}
	if !job.Active() {
		return
	}

	if err := job.action(ctx, e); err != nil {
		if errors.Is(err, ErrNotPending) {
			log.Info("entity resolved during cleanup, skipping")
			r.finish(job, gen)
			return
		}
		log.Error("grace period cleanup failed, retrying next tick", "err", err)
		return
	}
	log.Info("grace period expired, cleanup done", "created_at", e.CreatedAt)
	if !r.finish(job, gen) {
		log.Info("grace period re-armed during cleanup, still watching")
	}
}
