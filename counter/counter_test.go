package counter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementAndGet(t *testing.T) {
	s := NewSet()

	s.IncInsertOK(1)
	s.IncInsertOK(1)
	s.IncInsertFail(1)
	s.IncUpdateOK(2)
	s.IncUpdateFail(2)

	assert.Equal(t, Counts{InsertOK: 2, InsertFail: 1}, s.Get(1))
	assert.Equal(t, Counts{UpdateOK: 1, UpdateFail: 1}, s.Get(2))
	assert.Equal(t, Counts{}, s.Get(99))
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewSet()
	s.IncInsertOK(1)

	snap := s.Snapshot()
	s.IncInsertOK(1)

	assert.Equal(t, uint64(1), snap[1].InsertOK)
	assert.Equal(t, uint64(2), s.Get(1).InsertOK)
}

// Every attempt is counted exactly once even with the reporter snapshotting
// concurrently, and a snapshot never shows a lane whose success and failure
// fields disagree with the number of attempts made so far.
func TestConcurrentIncrementsAndSnapshots(t *testing.T) {
	s := NewSet()

	const lanes = 4
	const perLane = 1000

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			snap := s.Snapshot()
			for _, c := range snap {
				total := c.InsertOK + c.InsertFail
				assert.LessOrEqual(t, total, uint64(perLane))
			}
		}
	}()

	var wg sync.WaitGroup
	for lane := 1; lane <= lanes; lane++ {
		wg.Add(1)
		go func(lane int) {
			defer wg.Done()
			for i := 0; i < perLane; i++ {
				if i%10 == 0 {
					s.IncInsertFail(lane)
				} else {
					s.IncInsertOK(lane)
				}
			}
		}(lane)
	}
	wg.Wait()
	<-done

	for lane := 1; lane <= lanes; lane++ {
		c := s.Get(lane)
		require.Equal(t, uint64(perLane), c.InsertOK+c.InsertFail, "lane %d", lane)
		assert.Equal(t, uint64(perLane/10), c.InsertFail, "lane %d", lane)
	}
}

func TestLanesSorted(t *testing.T) {
	s := NewSet()
	s.IncInsertOK(3)
	s.IncInsertOK(1)
	s.IncInsertOK(2)

	assert.Equal(t, []int{1, 2, 3}, Lanes(s.Snapshot()))
}
