// Package session tracks the search state of each client session. Every
// search gets a generation number; a result is only recorded if no newer
// search has started in the same session since.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"stockinsight/backend-go/internal/models"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type State struct {
	Status     Status
	Ticker     string
	Generation uint64
	Message    string
	Report     *models.StockReport
	Updated    time.Time
}

type Store struct {
	mu          sync.Mutex
	sessions    map[string]*State
	idleTTL     time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

func NewStore(idleTTL time.Duration) *Store {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Store{sessions: make(map[string]*State), idleTTL: idleTTL, now: time.Now}
}

func NewID() string {
	return uuid.NewString()
}

// Begin marks the session as loading and returns the generation for the
// new search. Any search still in flight for the session becomes stale.
func (s *Store) Begin(id, ticker string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.cleanupLocked(now)

	st := s.sessions[id]
	if st == nil {
		st = &State{Status: StatusIdle}
		s.sessions[id] = st
	}
	st.Generation++
	st.Status = StatusLoading
	st.Ticker = ticker
	st.Message = ""
	st.Report = nil
	st.Updated = now
	return st.Generation
}

// Succeed records report if gen is still the latest search. It reports
// whether the result was applied.
func (s *Store) Succeed(id string, gen uint64, report *models.StockReport) bool {
	return s.finish(id, gen, func(st *State) {
		st.Status = StatusSuccess
		st.Report = report
	})
}

// Fail records an error message if gen is still the latest search.
func (s *Store) Fail(id string, gen uint64, message string) bool {
	return s.finish(id, gen, func(st *State) {
		st.Status = StatusError
		st.Message = message
	})
}

func (s *Store) finish(id string, gen uint64, apply func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.sessions[id]
	if st == nil || st.Generation != gen {
		return false
	}
	apply(st)
	st.Updated = s.now()
	return true
}

func (s *Store) Get(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.sessions[id]
	if st == nil {
		return State{Status: StatusIdle}, false
	}
	return *st, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) cleanupLocked(now time.Time) {
	if !s.lastCleanup.IsZero() && now.Sub(s.lastCleanup) < time.Minute {
		return
	}
	for id, st := range s.sessions {
		if st.Status != StatusLoading && now.Sub(st.Updated) > s.idleTTL {
			delete(s.sessions, id)
		}
	}
	s.lastCleanup = now
}
