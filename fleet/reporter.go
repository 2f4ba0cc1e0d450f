package fleet

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Konsultn-Engineering/proxyprobe/connector"
	"github.com/Konsultn-Engineering/proxyprobe/counter"
	"github.com/Konsultn-Engineering/proxyprobe/eventlog"
)

// Reporter periodically prints every lane's tallies. It only ever reads:
// one counter snapshot per wake-up, formatted as a human-readable block.
type Reporter struct {
	counts   *counter.Set
	interval time.Duration
	out      io.Writer
	now      func() time.Time
}

// NewReporter creates a reporter writing to out on the given period.
func NewReporter(counts *counter.Set, interval time.Duration, out io.Writer) *Reporter {
	return &Reporter{
		counts:   counts,
		interval: interval,
		now:      time.Now,
		out:      out,
	}
}

// Run emits a summary block every interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	for {
		if err := connector.SleepCtx(ctx, r.interval); err != nil {
			return
		}
		r.Report()
	}
}

// Report writes one summary block from a single consistent snapshot.
func (r *Reporter) Report() {
	snap := r.counts.Snapshot()

	fmt.Fprintf(r.out, "---- operation summary %s ----\n", r.now().UTC().Format(time.RFC3339))
	for _, lane := range counter.Lanes(snap) {
		c := snap[lane]
		fmt.Fprintf(r.out, "%s: insert ok/fail %d/%d, update ok/fail %d/%d\n",
			eventlog.LaneLabel(lane), c.InsertOK, c.InsertFail, c.UpdateOK, c.UpdateFail)
	}
	fmt.Fprintln(r.out, "--------------------------------------------------")
}
