package graceperiodtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/studyshare-api/internal/graceperiod"
)

// ErrInjected is the default error returned by injected failures.
var ErrInjected = errors.New("injected storage failure")

// Store is an in-memory graceperiod.Gateway with failure injection.
// Its Delete method is usable as a CleanupAction.
type Store struct {
	mu         sync.Mutex
	entities   map[string]graceperiod.Entity
	failGets   int
	failDelete int
	gets       map[string]int
	deletes    map[string]int
	beforeGet  func(key string, call int)
}

var _ graceperiod.Gateway = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		entities: make(map[string]graceperiod.Entity),
		gets:     make(map[string]int),
		deletes:  make(map[string]int),
	}
}

// Put stores a pending entity created at createdAt.
func (s *Store) Put(key string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[key] = graceperiod.Entity{Key: key, CreatedAt: createdAt, State: graceperiod.StatePending}
}

// Resolve marks key resolved.
func (s *Store) Resolve(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[key]; ok {
		e.State = graceperiod.StateResolved
		s.entities[key] = e
	}
}

// FailGets makes the next n Get calls fail.
func (s *Store) FailGets(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGets = n
}

// FailDeletes makes the next n Delete calls fail.
func (s *Store) FailDeletes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete = n
}

// BeforeGet installs a hook run at the start of every Get, outside the store lock.
// call is the 1-based Get count for key.
func (s *Store) BeforeGet(fn func(key string, call int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeGet = fn
}

func (s *Store) Get(_ context.Context, key string) (graceperiod.Entity, error) {
	s.mu.Lock()
	s.gets[key]++
	call, hook := s.gets[key], s.beforeGet
	s.mu.Unlock()
	if hook != nil {
		hook(key, call)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGets > 0 {
		s.failGets--
		return graceperiod.Entity{}, ErrInjected
	}
	e, ok := s.entities[key]
	if !ok {
		return graceperiod.Entity{Key: key, State: graceperiod.StateAbsent}, nil
	}
	return e, nil
}

// Delete removes a still-pending entity, mirroring a conditional delete.
func (s *Store) Delete(_ context.Context, e graceperiod.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete > 0 {
		s.failDelete--
		return ErrInjected
	}
	cur, ok := s.entities[e.Key]
	if !ok || cur.State != graceperiod.StatePending {
		return graceperiod.ErrNotPending
	}
	delete(s.entities, e.Key)
	s.deletes[e.Key]++
	return nil
}

// Deletes reports how many successful deletes ran for key.
func (s *Store) Deletes(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes[key]
}

// Gets reports how many Get calls were made for key.
func (s *Store) Gets(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[key]
}

// Exists reports whether key is stored.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entities[key]
	return ok
}
