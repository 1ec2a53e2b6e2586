package server

import (
	"sync/atomic"

	"github.com/SpatiumPortae/ferry/internal/receiver"
)

type stats struct {
	accepted atomic.Int64
	saved    atomic.Int64
	short    atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

// Snapshot is a point-in-time copy of the server counters.
type Snapshot struct {
	Accepted      int64 `json:"accepted"`
	ActiveWorkers int   `json:"active_workers"`
	FilesSaved    int64 `json:"files_saved"`
	ShortFiles    int64 `json:"short_files"`
	Rejected      int64 `json:"rejected_files"`
	FailedBatches int64 `json:"failed_batches"`
}

func (s *stats) record(sum receiver.Summary, err error) {
	s.saved.Add(int64(sum.Saved))
	s.short.Add(int64(sum.Short))
	s.rejected.Add(int64(sum.Rejected))
	if err != nil {
		s.failed.Add(1)
	}
}

func (s *stats) snapshot(active int) Snapshot {
	return Snapshot{
		Accepted:      s.accepted.Load(),
		ActiveWorkers: active,
		FilesSaved:    s.saved.Load(),
		ShortFiles:    s.short.Load(),
		Rejected:      s.rejected.Load(),
		FailedBatches: s.failed.Load(),
	}
}
