package session

import (
	"context"
	"sync"

	"adgenius/internal/domain"
	"adgenius/internal/metrics"
	"adgenius/internal/pipeline"
)

// Run is the handle of one in-flight operation on a session. Writes made
// through a superseded run are dropped so a stale result never replaces a
// newer one.
type Run struct {
	store  *Store
	sess   *session
	cancel context.CancelFunc
	once   sync.Once
}

// current must be called with the store lock held.
func (r *Run) current() bool {
	return r.sess.run == r
}

// Observe records stage transitions. It matches pipeline.Observer.
func (r *Run) Observe(ev pipeline.Event) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if !r.current() {
		return
	}
	r.sess.stage = ev.Stage
	r.sess.updatedAt = r.store.now()
}

// SetProfile stores the analysis result. It reports false when the run
// was superseded.
func (r *Run) SetProfile(profile domain.ProductProfile) bool {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if !r.current() {
		return false
	}
	r.sess.profile = profile
	r.sess.analyzed = true
	r.sess.stage = domain.StageIdle
	r.sess.updatedAt = r.store.now()
	return true
}

// Complete stores a finished ad, replacing the previous one wholesale.
func (r *Run) Complete(ad *domain.AdRecord) bool {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if !r.current() {
		return false
	}
	r.sess.ad = ad
	r.sess.failure = nil
	r.sess.stage = domain.StageComplete
	r.sess.updatedAt = r.store.now()
	return true
}

// Fail stores the state needed to retry a failed transform.
func (r *Run) Fail(partial pipeline.Partial) bool {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if !r.current() {
		return false
	}
	r.sess.failure = &partial
	r.sess.stage = domain.StageFailed
	r.sess.updatedAt = r.store.now()
	return true
}

// Finish releases the run. It is safe to call more than once.
func (r *Run) Finish() {
	r.once.Do(func() {
		r.store.mu.Lock()
		if r.current() {
			r.sess.run = nil
			if !r.sess.stage.Terminal() && r.sess.stage != domain.StageIdle {
				r.sess.stage = domain.StageIdle
			}
		}
		r.store.mu.Unlock()
		r.cancel()
		metrics.GenerationsActive.Dec()
	})
}
