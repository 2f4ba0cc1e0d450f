// Package counter tracks per-lane operation tallies. Increments come from
// the lane that owns the entry; snapshots come from the reporter, so both
// sides share one lock to keep a lane's four fields consistent.
package counter

import (
	"sort"
	"sync"
)

// Counts holds one lane's monotonically increasing operation tallies.
type Counts struct {
	InsertOK   uint64
	InsertFail uint64
	UpdateOK   uint64
	UpdateFail uint64
}

// Set is the run-wide lane to Counts map.
type Set struct {
	mu    sync.Mutex
	lanes map[int]*Counts
}

// NewSet returns an empty counter set.
func NewSet() *Set {
	return &Set{lanes: make(map[int]*Counts)}
}

func (s *Set) lane(id int) *Counts {
	c, ok := s.lanes[id]
	if !ok {
		c = &Counts{}
		s.lanes[id] = c
	}
	return c
}

// IncInsertOK records a successful insert for the lane.
func (s *Set) IncInsertOK(lane int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lane(lane).InsertOK++
}

// IncInsertFail records a failed insert for the lane.
func (s *Set) IncInsertFail(lane int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lane(lane).InsertFail++
}

// IncUpdateOK records a successful update for the lane.
func (s *Set) IncUpdateOK(lane int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lane(lane).UpdateOK++
}

// IncUpdateFail records a failed update for the lane.
func (s *Set) IncUpdateFail(lane int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lane(lane).UpdateFail++
}

// Get returns a copy of one lane's counts.
func (s *Set) Get(lane int) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.lanes[lane]; ok {
		return *c
	}
	return Counts{}
}

// Snapshot returns a consistent copy of every lane's counts. No increment
// can land between copying one lane and the next, so the reporter never
// observes a torn lane record.
func (s *Set) Snapshot() map[int]Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int]Counts, len(s.lanes))
	for id, c := range s.lanes {
		out[id] = *c
	}
	return out
}

// Lanes returns the known lane ids in ascending order.
func Lanes(snapshot map[int]Counts) []int {
	ids := make([]int, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
