// Package session keeps the per-user working state of the ad builder in
// memory and guarantees at most one in-flight generation per session.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"adgenius/internal/domain"
	"adgenius/internal/metrics"
	"adgenius/internal/pipeline"
)

// ConflictPolicy decides what Begin does when a run is already in flight.
type ConflictPolicy string

const (
	// PolicyCancel cancels the previous run and starts the new one.
	PolicyCancel ConflictPolicy = "cancel"
	// PolicyReject refuses the new run with domain.ErrGenerationInFlight.
	PolicyReject ConflictPolicy = "reject"
)

// ParseConflictPolicy normalizes a policy name. Empty input selects cancel.
func ParseConflictPolicy(raw string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(PolicyCancel):
		return PolicyCancel, nil
	case string(PolicyReject):
		return PolicyReject, nil
	}
	return "", fmt.Errorf("%w: unknown conflict policy %q", domain.ErrInvalidRequest, raw)
}

// Snapshot is a copy of a session's state.
type Snapshot struct {
	ID        string
	Source    domain.Image
	Profile   domain.ProductProfile
	Analyzed  bool
	Stage     domain.Stage
	Ad        *domain.AdRecord
	Failure   *pipeline.Partial
	Running   bool
	UpdatedAt time.Time
}

type session struct {
	id        string
	source    domain.Image
	profile   domain.ProductProfile
	analyzed  bool
	stage     domain.Stage
	ad        *domain.AdRecord
	failure   *pipeline.Partial
	run       *Run
	updatedAt time.Time
}

// Store is an in-memory session registry safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	policy   ConflictPolicy
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore(policy ConflictPolicy) *Store {
	if policy == "" {
		policy = PolicyCancel
	}
	return &Store{
		sessions: make(map[string]*session),
		policy:   policy,
		now:      time.Now,
	}
}

// Policy returns the configured conflict policy.
func (s *Store) Policy() ConflictPolicy {
	return s.policy
}

// Create registers a new idle session and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{id: id, stage: domain.StageIdle, updatedAt: s.now()}
	s.mu.Unlock()
	return id
}

// Get returns a snapshot of the session.
func (s *Store) Get(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, domain.ErrNotFound
	}
	return sess.snapshot(), nil
}

// SetSource replaces the source image. Any in-flight run is cancelled and
// everything derived from the previous image is cleared.
func (s *Store) SetSource(id string, img domain.Image) error {
	if img.Empty() {
		return domain.ErrNoSourceImage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sess.clear()
	sess.source = img
	sess.updatedAt = s.now()
	return nil
}

// SetProfile overwrites the product profile, typically after a user edit.
func (s *Store) SetProfile(id string, profile domain.ProductProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sess.profile = profile
	sess.analyzed = true
	sess.updatedAt = s.now()
	return nil
}

// Reset cancels any in-flight run and returns the session to idle.
func (s *Store) Reset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sess.clear()
	sess.updatedAt = s.now()
	return nil
}

// Delete cancels any in-flight run and forgets the session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sess.clear()
	delete(s.sessions, id)
	return nil
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune deletes idle sessions not touched since the cutoff and returns
// their ids.
func (s *Store) Prune(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, sess := range s.sessions {
		if sess.run == nil && sess.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Begin starts a run for the session. The returned context is cancelled
// when the run is superseded, the session is reset, or Finish is called.
func (s *Store) Begin(ctx context.Context, id string) (context.Context, *Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if sess.run != nil {
		if s.policy == PolicyReject {
			return nil, nil, domain.ErrGenerationInFlight
		}
		sess.run.cancel()
		sess.run = nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{store: s, sess: sess, cancel: cancel}
	sess.run = run
	sess.updatedAt = s.now()
	metrics.GenerationsActive.Inc()
	return runCtx, run, nil
}

func (sess *session) clear() {
	if sess.run != nil {
		sess.run.cancel()
		sess.run = nil
	}
	sess.source = domain.Image{}
	sess.profile = domain.ProductProfile{}
	sess.analyzed = false
	sess.ad = nil
	sess.failure = nil
	sess.stage = domain.StageIdle
}

func (sess *session) snapshot() Snapshot {
	snap := Snapshot{
		ID:        sess.id,
		Source:    sess.source,
		Profile:   sess.profile,
		Analyzed:  sess.analyzed,
		Stage:     sess.stage,
		Running:   sess.run != nil,
		UpdatedAt: sess.updatedAt,
	}
	if sess.ad != nil {
		ad := *sess.ad
		snap.Ad = &ad
	}
	if sess.failure != nil {
		failure := *sess.failure
		snap.Failure = &failure
	}
	return snap
}
