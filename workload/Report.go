package workload

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// PhaseResult describes the bulk load or one user's insertion batch.
type PhaseResult struct {
	UserID     int
	Elapsed    time.Duration
	Inserted   int
	FailedAt   int // -1 unless the batch was abandoned
	Leaves     int
	ModelNodes int
	Artifact   string
	Skipped    bool
	Err        error
}

type Report struct {
	RunID   string
	Initial PhaseResult
	Users   []PhaseResult
}

// Completed lists the user phases that produced an artifact.
func (r *Report) Completed() []PhaseResult {
	done := make([]PhaseResult, 0, len(r.Users))
	for _, phase := range r.Users {
		if !phase.Skipped {
			done = append(done, phase)
		}
	}
	return done
}

// WriteSummary prints one row per phase with its elapsed time in nanoseconds.
func (r *Report) WriteSummary(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tUSER\tELAPSED_NS\tKEYS\tLEAVES\tSTATUS")
	fmt.Fprintf(tw, "bulk_load\t%d\t%d\t%d\t%d\t%s\n", r.Initial.UserID, r.Initial.Elapsed.Nanoseconds(), r.Initial.Inserted, r.Initial.Leaves, status(r.Initial))
	for _, phase := range r.Users {
		fmt.Fprintf(tw, "insert\t%d\t%d\t%d\t%d\t%s\n", phase.UserID, phase.Elapsed.Nanoseconds(), phase.Inserted, phase.Leaves, status(phase))
	}
	return tw.Flush()
}

func status(phase PhaseResult) string {
	switch {
	case phase.Skipped:
		return "skipped"
	case phase.FailedAt >= 0:
		return fmt.Sprintf("failed at %d", phase.FailedAt)
	}
	return "ok"
}
