package fleet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Konsultn-Engineering/proxyprobe/counter"
	"github.com/Konsultn-Engineering/proxyprobe/eventlog"
)

// LaneSummary is one lane's final tallies.
type LaneSummary struct {
	InsertOK   uint64 `json:"insert_success"`
	InsertFail uint64 `json:"insert_fail"`
	UpdateOK   uint64 `json:"update_success"`
	UpdateFail uint64 `json:"update_fail"`
}

// Summary is the run-wide result archived when a run ends.
type Summary struct {
	RunID      string                 `json:"run_id"`
	Lanes      int                    `json:"lanes"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Results    map[string]LaneSummary `json:"results"`
}

func newSummary(runID string, lanes int, started, finished time.Time, snap map[int]counter.Counts) Summary {
	s := Summary{
		RunID:      runID,
		Lanes:      lanes,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Results:    make(map[string]LaneSummary, len(snap)),
	}
	for lane, c := range snap {
		s.Results[eventlog.LaneLabel(lane)] = LaneSummary{
			InsertOK:   c.InsertOK,
			InsertFail: c.InsertFail,
			UpdateOK:   c.UpdateOK,
			UpdateFail: c.UpdateFail,
		}
	}
	return s
}

// archiveKey places each run's summary under a date-partitioned prefix.
func (s Summary) archiveKey() string {
	return fmt.Sprintf("proxyprobe-results/%s/%s.json",
		s.RunID, s.FinishedAt.Format("2006/01/02/150405"))
}

func (s Summary) payload() ([]byte, error) {
	return json.MarshalIndent(s, "", "    ")
}

// notifyBody renders the short text published alongside the archive.
func (s Summary) notifyBody() string {
	var failed uint64
	var succeeded uint64
	for _, r := range s.Results {
		succeeded += r.InsertOK + r.UpdateOK
		failed += r.InsertFail + r.UpdateFail
	}
	return fmt.Sprintf("run %s finished: %d lanes, %d operations succeeded, %d failed, duration %s",
		s.RunID, s.Lanes, succeeded, failed, s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
}
