// Package state holds the live value table of all configured tags.
package state

import (
	"k8s.io/apimachinery/pkg/util/sets"
	"sort"
	"sync"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"time"
)

// Snapshot is a consistent point in time view of one tag's live state.
type Snapshot struct {
	TagID     string           `json:"tagId"`
	Value     runtime.Value    `json:"value"`
	Previous  runtime.Value    `json:"previousValue"`
	Quality   constant.Quality `json:"quality"`
	Timestamp time.Time        `json:"timestamp"`
}

type entry struct {
	mu   sync.RWMutex
	snap Snapshot
}

// Store is the table of current tag values. The table lock only guards membership;
// each tag has its own lock so updates to different tags never contend.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func newEntry(tagID string) *entry {
	return &entry{snap: Snapshot{TagID: tagID, Quality: constant.Bad}}
}

// Register adds a tag with no value and Bad quality. Registering a known tag keeps its state.
func (s *Store) Register(tagID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[tagID]; !ok {
		s.entries[tagID] = newEntry(tagID)
	}
}

// Sync makes the table hold exactly tagIDs in one step. State of surviving tags is kept.
// It returns the ids that were dropped.
func (s *Store) Sync(tagIDs []string) []string {
	want := sets.NewString(tagIDs...)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]string, 0)
	for id := range s.entries {
		if !want.Has(id) {
			removed = append(removed, id)
		}
	}
	entries := make(map[string]*entry, want.Len())
	for _, id := range want.UnsortedList() {
		if e, ok := s.entries[id]; ok {
			entries[id] = e
		} else {
			entries[id] = newEntry(id)
		}
	}
	s.entries = entries
	return removed
}

// Reset clears the value history of a tag, used when its data type changes.
func (s *Store) Reset(tagID string) error {
	e, err := s.lookup(tagID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.snap = newEntry(tagID).snap
	e.mu.Unlock()
	return nil
}

func (s *Store) lookup(tagID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[tagID]
	s.mu.RUnlock()
	if !ok {
		return nil, &runtime.UnknownTagError{TagID: tagID}
	}
	return e, nil
}

func (s *Store) Read(tagID string) (Snapshot, error) {
	e, err := s.lookup(tagID)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap, nil
}

// Update shifts the current value into the previous slot and stores value, quality and timestamp together.
func (s *Store) Update(tagID string, value runtime.Value, quality constant.Quality, timestamp time.Time) (Snapshot, error) {
	e, err := s.lookup(tagID)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Previous = e.snap.Value
	e.snap.Value = value
	e.snap.Quality = quality
	e.snap.Timestamp = timestamp
	return e.snap, nil
}

// SetQuality changes only the quality. Value history and timestamp stay frozen.
func (s *Store) SetQuality(tagID string, quality constant.Quality) (Snapshot, error) {
	e, err := s.lookup(tagID)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Quality = quality
	return e.snap, nil
}

// List returns a snapshot of every tag ordered by tag id.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		snaps = append(snaps, e.snap)
		e.mu.RUnlock()
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].TagID < snaps[j].TagID })
	return snaps
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Apply copies the live state of a snapshot into a tag for presentation.
func Apply(tag *runtime.Tag, snap Snapshot) *runtime.Tag {
	out := tag.DeepCopy()
	out.CurrentValue = snap.Value
	out.PreviousValue = snap.Previous
	out.Quality = snap.Quality
	out.ValueTimestamp = snap.Timestamp
	return out
}
