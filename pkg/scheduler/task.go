package scheduler

import (
	"context"
	"fmt"
	"k8s.io/klog/v2"
	"runtime/debug"
	"tagscan/pkg/deadband"
	"tagscan/pkg/device"
	"tagscan/pkg/event"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/scaling"
	"time"
)

// run scans once immediately and then on every tick. Ticks that elapse while a read
// is in flight are skipped, never queued.
func (s *Scheduler) run(ctx context.Context, tk *task, interval time.Duration) {
	defer s.wg.Done()
	defer close(tk.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.scan(ctx, tk)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx, tk)
			select {
			case <-ticker.C:
				if _, st, ok := s.lookup(tk.tagID); ok {
					st.skipped.Inc()
				}
			default:
			}
		}
	}
}

func (s *Scheduler) scan(ctx context.Context, tk *task) {
	tag, st, ok := s.lookup(tk.tagID)
	if !ok {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			klog.ErrorS(fmt.Errorf("%v", p), "Recovered scan panic", "tagId", tk.tagID, "stack", string(debug.Stack()))
			s.fail(tag, st, fmt.Errorf("scan panic: %v", p), s.now())
		}
	}()

	st.reads.Inc()
	raw, err := s.read(ctx, tk.queue, tag)
	at := s.now()
	st.lastScan.Store(at.UnixNano())
	if err != nil {
		s.fail(tag, st, err, at)
		return
	}
	s.accept(tag, st, raw, at)
}

func (s *Scheduler) read(ctx context.Context, q *device.Queue, tag *runtime.Tag) (runtime.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	return q.Read(ctx, tag.Address, tag.DataType)
}

// accept runs a good reading through scaling, deadband, the store and alarm evaluation.
func (s *Scheduler) accept(tag *runtime.Tag, st *tagStats, raw runtime.Value, at time.Time) {
	eng, err := scaling.Scale(raw, tag)
	if err != nil {
		s.fail(tag, st, err, at)
		return
	}
	prev, err := s.store.Read(tag.ID)
	if err != nil {
		klog.V(3).InfoS("Failed to read tag state", "tagId", tag.ID, "err", err)
		return
	}
	if !deadband.ShouldPropagate(eng, prev.Value, tag.Deadband, prev.Quality != constant.Good) {
		st.filtered.Inc()
		return
	}
	s.propagate(tag, eng, at)
}

// propagate stores an accepted engineering value and emits its events.
func (s *Scheduler) propagate(tag *runtime.Tag, eng runtime.Value, at time.Time) {
	snap, err := s.store.Update(tag.ID, eng, constant.Good, at)
	if err != nil {
		klog.V(3).InfoS("Failed to update tag state", "tagId", tag.ID, "err", err)
		return
	}
	s.sink.PublishValue(event.ValueUpdate{
		TagID:     tag.ID,
		Value:     snap.Value,
		Quality:   snap.Quality,
		Timestamp: snap.Timestamp,
	})
	if tr := s.alarms.Evaluate(tag, eng, at); tr != nil {
		klog.V(2).InfoS("Alarm state changed", "tagId", tag.ID, "from", tr.From, "to", tr.To, "value", tr.Value)
		s.sink.PublishAlarm(*tr)
	}
}

// fail marks the tag Bad. The last good value and its timestamp are kept.
func (s *Scheduler) fail(tag *runtime.Tag, st *tagStats, err error, at time.Time) {
	st.failures.Inc()
	st.lastError.Store(err.Error())
	snap, serr := s.store.SetQuality(tag.ID, constant.Bad)
	if serr != nil {
		klog.V(3).InfoS("Failed to update tag state", "tagId", tag.ID, "err", serr)
		return
	}
	klog.V(3).InfoS("Failed to read tag", "tagId", tag.ID, "deviceId", tag.DeviceID, "address", tag.Address, "err", err)
	s.sink.PublishValue(event.ValueUpdate{
		TagID:     tag.ID,
		Value:     snap.Value,
		Quality:   constant.Bad,
		Timestamp: at,
	})
}
