// Package alarm evaluates high and low limits per tag and reports state changes.
package alarm

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"tagscan/pkg/runtime"
	"time"
)

type State int8

const (
	Normal State = iota
	HighAlarm
	LowAlarm
)

var StateToString = map[State]string{
	Normal:    "normal",
	HighAlarm: "highAlarm",
	LowAlarm:  "lowAlarm",
}

func (s State) String() string {
	if v, ok := StateToString[s]; ok {
		return v
	}
	return fmt.Sprintf("State(%d)", s)
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Transition is emitted once per alarm state change.
type Transition struct {
	TagID     string        `json:"tagId"`
	From      State         `json:"from"`
	To        State         `json:"to"`
	Value     runtime.Value `json:"value"`
	Timestamp time.Time     `json:"timestamp"`
}

// Status is the current alarm condition of one tag.
type Status struct {
	TagID string        `json:"tagId"`
	State State         `json:"state"`
	Value runtime.Value `json:"value"`
	Since time.Time     `json:"since"`
}

// Evaluator owns the alarm state of every tag, keyed by tag id.
// Evaluate for a given tag is called by a single scan task; readers may call State concurrently.
type Evaluator struct {
	mu     sync.RWMutex
	states map[string]*Status
}

func NewEvaluator() *Evaluator {
	return &Evaluator{states: make(map[string]*Status)}
}

// Evaluate feeds a new engineering value for tag and returns the transition it caused, if any.
// NaN and infinite values are neither inside nor outside the limits and leave the state unchanged.
func (e *Evaluator) Evaluate(tag *runtime.Tag, value runtime.Value, at time.Time) *Transition {
	if !tag.AlarmsApply() {
		return nil
	}
	v, ok := value.Float64()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	next := classify(v, tag.HighAlarmLimit, tag.LowAlarmLimit)

	e.mu.Lock()
	defer e.mu.Unlock()
	status, exist := e.states[tag.ID]
	if !exist {
		status = &Status{TagID: tag.ID, State: Normal, Since: at}
		e.states[tag.ID] = status
	}
	if status.State == next {
		return nil
	}

	tr := &Transition{TagID: tag.ID, From: status.State, To: next, Value: value, Timestamp: at}
	status.State = next
	status.Value = value
	status.Since = at
	return tr
}

func classify(v float64, high, low *float64) State {
	switch {
	case high != nil && v >= *high:
		return HighAlarm
	case low != nil && v <= *low:
		return LowAlarm
	}
	return Normal
}

// State returns the alarm condition of a tag. Tags never evaluated are Normal.
func (e *Evaluator) State(tagID string) Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := e.states[tagID]; ok {
		return *s
	}
	return Status{TagID: tagID, State: Normal}
}

// Active lists tags currently in an alarm state, ordered by the time they entered it.
func (e *Evaluator) Active() []Status {
	e.mu.RLock()
	active := make([]Status, 0)
	for _, s := range e.states {
		if s.State != Normal {
			active = append(active, *s)
		}
	}
	e.mu.RUnlock()
	sort.Slice(active, func(i, j int) bool { return active[i].Since.Before(active[j].Since) })
	return active
}

// Forget drops the alarm state of a tag removed from the configuration.
func (e *Evaluator) Forget(tagID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, tagID)
}
