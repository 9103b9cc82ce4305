// Package event carries value updates and alarm transitions out of the scan pipeline.
package event

import (
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
	"tagscan/pkg/alarm"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"time"
)

// ValueUpdate is emitted for every accepted value and for every failed read.
type ValueUpdate struct {
	TagID     string           `json:"tagId"`
	Value     runtime.Value    `json:"value"`
	Quality   constant.Quality `json:"quality"`
	Timestamp time.Time        `json:"timestamp"`
}

type AlarmTransition = alarm.Transition

// Sink receives pipeline events. Implementations must not block the caller.
type Sink interface {
	PublishValue(update ValueUpdate)
	PublishAlarm(transition AlarmTransition)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) PublishValue(ValueUpdate)     {}
func (discard) PublishAlarm(AlarmTransition) {}

// ChannelSink buffers events on channels. When a buffer is full the event is dropped and counted.
type ChannelSink struct {
	values  chan ValueUpdate
	alarms  chan AlarmTransition
	dropped *atomic.Uint64
}

func NewChannelSink(size int) *ChannelSink {
	if size < 0 {
		size = 0
	}
	return &ChannelSink{
		values:  make(chan ValueUpdate, size),
		alarms:  make(chan AlarmTransition, size),
		dropped: atomic.NewUint64(0),
	}
}

func (s *ChannelSink) PublishValue(update ValueUpdate) {
	select {
	case s.values <- update:
	default:
		s.dropped.Inc()
		klog.V(4).InfoS("Dropped value update", "tagId", update.TagID)
	}
}

func (s *ChannelSink) PublishAlarm(transition AlarmTransition) {
	select {
	case s.alarms <- transition:
	default:
		s.dropped.Inc()
		klog.V(2).InfoS("Dropped alarm transition", "tagId", transition.TagID, "to", transition.To)
	}
}

func (s *ChannelSink) Values() <-chan ValueUpdate {
	return s.values
}

func (s *ChannelSink) Alarms() <-chan AlarmTransition {
	return s.alarms
}

func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// LogSink writes events to the structured log.
type LogSink struct{}

func (LogSink) PublishValue(update ValueUpdate) {
	klog.V(4).InfoS("Tag value", "tagId", update.TagID, "value", update.Value.String(), "quality", update.Quality)
}

func (LogSink) PublishAlarm(transition AlarmTransition) {
	klog.InfoS("Alarm state changed", "tagId", transition.TagID, "from", transition.From, "to", transition.To, "value", transition.Value.String())
}

// MultiSink fans events out to every sink in order.
type MultiSink []Sink

func (m MultiSink) PublishValue(update ValueUpdate) {
	for _, s := range m {
		s.PublishValue(update)
	}
}

func (m MultiSink) PublishAlarm(transition AlarmTransition) {
	for _, s := range m {
		s.PublishAlarm(transition)
	}
}
