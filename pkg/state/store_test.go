package state

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"testing"
	"time"
)

func TestRegisterStartsBad(t *testing.T) {
	s := NewStore()
	s.Register("a")
	snap, err := s.Read("a")
	require.NoError(t, err)
	assert.Equal(t, constant.Bad, snap.Quality)
	assert.True(t, snap.Value.IsNull())
	assert.True(t, snap.Timestamp.IsZero())
}

func TestUnknownTag(t *testing.T) {
	s := NewStore()
	_, err := s.Read("missing")
	assert.True(t, runtime.IsUnknownTag(err))
	_, err = s.Update("missing", runtime.DoubleValue(1), constant.Good, time.Now())
	assert.True(t, runtime.IsUnknownTag(err))
	_, err = s.SetQuality("missing", constant.Bad)
	assert.True(t, runtime.IsUnknownTag(err))
	assert.True(t, runtime.IsUnknownTag(s.Reset("missing")))
}

func TestUpdateShiftsPrevious(t *testing.T) {
	s := NewStore()
	s.Register("a")
	t0 := time.Now()

	_, err := s.Update("a", runtime.DoubleValue(5), constant.Good, t0)
	require.NoError(t, err)
	snap, err := s.Update("a", runtime.DoubleValue(10), constant.Good, t0.Add(time.Second))
	require.NoError(t, err)

	assert.True(t, runtime.DoubleValue(10).Equal(snap.Value))
	assert.True(t, runtime.DoubleValue(5).Equal(snap.Previous))
	assert.Equal(t, t0.Add(time.Second), snap.Timestamp)
}

func TestSetQualityKeepsValue(t *testing.T) {
	s := NewStore()
	s.Register("a")
	t0 := time.Now()
	_, _ = s.Update("a", runtime.DoubleValue(5), constant.Good, t0)

	snap, err := s.SetQuality("a", constant.Bad)
	require.NoError(t, err)
	assert.Equal(t, constant.Bad, snap.Quality)
	assert.True(t, runtime.DoubleValue(5).Equal(snap.Value))
	assert.True(t, snap.Previous.IsNull())
	assert.Equal(t, t0, snap.Timestamp)
}

func TestSyncKeepsSurvivors(t *testing.T) {
	s := NewStore()
	s.Register("a")
	s.Register("b")
	_, _ = s.Update("a", runtime.DoubleValue(1), constant.Good, time.Now())

	removed := s.Sync([]string{"a", "c"})
	assert.Equal(t, []string{"b"}, removed)
	assert.Equal(t, 2, s.Len())

	snap, err := s.Read("a")
	require.NoError(t, err)
	assert.Equal(t, constant.Good, snap.Quality)
	snap, err = s.Read("c")
	require.NoError(t, err)
	assert.Equal(t, constant.Bad, snap.Quality)

	require.NoError(t, s.Reset("a"))
	snap, _ = s.Read("a")
	assert.True(t, snap.Value.IsNull())

	ids := make([]string, 0)
	for _, snap := range s.List() {
		ids = append(ids, snap.TagID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

// Readers must never see a value from one update paired with the quality or timestamp of another.
func TestConcurrentUpdatesAreAtomic(t *testing.T) {
	s := NewStore()
	s.Register("a")
	base := time.Unix(1700000000, 0)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				n := int64(w*1000 + i)
				q := constant.Good
				if n%2 == 1 {
					q = constant.Uncertain
				}
				_, err := s.Update("a", runtime.IntValue(constant.Int64, n), q, base.Add(time.Duration(n)*time.Second))
				assert.NoError(t, err)
			}
		}(w)
	}

	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := s.Read("a")
				if !assert.NoError(t, err) || snap.Value.IsNull() {
					continue
				}
				n, _ := snap.Value.Float64()
				assert.Equal(t, base.Add(time.Duration(n)*time.Second), snap.Timestamp)
				if int64(n)%2 == 1 {
					assert.Equal(t, constant.Uncertain, snap.Quality)
				} else {
					assert.Equal(t, constant.Good, snap.Quality)
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()
}

func TestApply(t *testing.T) {
	tag := runtime.NewTag("Level")
	ts := time.Now()
	out := Apply(tag, Snapshot{TagID: tag.ID, Value: runtime.DoubleValue(3), Previous: runtime.DoubleValue(2), Quality: constant.Good, Timestamp: ts})
	assert.True(t, runtime.DoubleValue(3).Equal(out.CurrentValue))
	assert.True(t, runtime.DoubleValue(2).Equal(out.PreviousValue))
	assert.Equal(t, constant.Good, out.Quality)
	assert.Equal(t, ts, out.ValueTimestamp)
	assert.Equal(t, constant.Bad, tag.Quality)
}
