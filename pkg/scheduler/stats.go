package scheduler

import (
	"go.uber.org/atomic"
	"sort"
	"tagscan/pkg/device"
	"time"
)

type tagStats struct {
	reads     *atomic.Uint64
	failures  *atomic.Uint64
	filtered  *atomic.Uint64
	skipped   *atomic.Uint64
	lastError *atomic.String
	lastScan  *atomic.Int64
}

func newTagStats() *tagStats {
	return &tagStats{
		reads:     atomic.NewUint64(0),
		failures:  atomic.NewUint64(0),
		filtered:  atomic.NewUint64(0),
		skipped:   atomic.NewUint64(0),
		lastError: atomic.NewString(""),
		lastScan:  atomic.NewInt64(0),
	}
}

// TagStats counts scan activity of one tag since it was loaded.
type TagStats struct {
	TagID     string     `json:"tagId"`
	Running   bool       `json:"running"`
	Reads     uint64     `json:"reads"`
	Failures  uint64     `json:"failures"`
	Filtered  uint64     `json:"filtered"`
	Skipped   uint64     `json:"skipped"`
	LastError string     `json:"lastError,omitempty"`
	LastScan  *time.Time `json:"lastScan,omitempty"`
}

type Stats struct {
	Version     string              `json:"version"`
	Tags        int                 `json:"tags"`
	Tasks       int                 `json:"tasks"`
	Inflight    int                 `json:"inflight"`
	MaxInflight int                 `json:"maxInflight"`
	Devices     []device.QueueStats `json:"devices"`
	TagStats    []TagStats          `json:"tagStats,omitempty"`
}

// Stats reports scheduler load. Per tag counters are included when detail is set.
func (s *Scheduler) Stats(detail bool) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Stats{
		Version:     s.version,
		Tags:        len(s.tags),
		Tasks:       len(s.tasks),
		Inflight:    s.inflight.InUse(),
		MaxInflight: s.inflight.Size(),
		Devices:     make([]device.QueueStats, 0, len(s.queues)),
	}
	for _, q := range s.queues {
		out.Devices = append(out.Devices, q.Stats())
	}
	sort.Slice(out.Devices, func(i, j int) bool { return out.Devices[i].DeviceID < out.Devices[j].DeviceID })

	if detail {
		out.TagStats = make([]TagStats, 0, len(s.stats))
		for id, st := range s.stats {
			_, running := s.tasks[id]
			out.TagStats = append(out.TagStats, st.snapshot(id, running))
		}
		sort.Slice(out.TagStats, func(i, j int) bool { return out.TagStats[i].TagID < out.TagStats[j].TagID })
	}
	return out
}

func (st *tagStats) snapshot(tagID string, running bool) TagStats {
	ts := TagStats{
		TagID:     tagID,
		Running:   running,
		Reads:     st.reads.Load(),
		Failures:  st.failures.Load(),
		Filtered:  st.filtered.Load(),
		Skipped:   st.skipped.Load(),
		LastError: st.lastError.Load(),
	}
	if n := st.lastScan.Load(); n > 0 {
		at := time.Unix(0, n)
		ts.LastScan = &at
	}
	return ts
}
