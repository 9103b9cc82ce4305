// Package scheduler polls every enabled tag at its own scan rate and drives the
// read, scale, deadband, store and alarm pipeline.
package scheduler

import (
	"context"
	"fmt"
	"go.uber.org/atomic"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
	"reflect"
	"sync"
	"tagscan/pkg/alarm"
	"tagscan/pkg/device"
	"tagscan/pkg/event"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/state"
	"tagscan/pkg/utils/differenceutil"
	v1 "tagscan/pkg/v1"
	"time"
)

const (
	DefaultReadTimeout = 5 * time.Second
	DefaultMaxInflight = 64
)

type Option func(*Scheduler)

func WithReadTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithMaxInflight bounds the number of device reads and writes on the wire across all devices.
// Requests queued behind a busy device do not count.
func WithMaxInflight(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.inflight = device.NewLimiter(n)
		}
	}
}

func WithSink(sink event.Sink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithPortFactory(protocol string, factory device.Factory) Option {
	return func(s *Scheduler) {
		s.factories[protocol] = factory
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

type task struct {
	tagID  string
	queue  *device.Queue
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the active tag set, one scan task per scannable tag and one queue per device.
type Scheduler struct {
	// ctl serializes configuration changes so task starts and stops never interleave.
	ctl sync.Mutex
	mu  sync.RWMutex

	version string
	tags    map[string]*runtime.Tag
	devices map[string]*v1.Device
	queues  map[string]*device.Queue
	tasks   map[string]*task
	stats   map[string]*tagStats

	store       *state.Store
	alarms      *alarm.Evaluator
	sink        event.Sink
	factories   map[string]device.Factory
	inflight    device.Limiter
	readTimeout time.Duration
	now         func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	started *atomic.Bool
	wg      sync.WaitGroup
}

func NewScheduler(store *state.Store, alarms *alarm.Evaluator, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		tags:        make(map[string]*runtime.Tag),
		devices:     make(map[string]*v1.Device),
		queues:      make(map[string]*device.Queue),
		tasks:       make(map[string]*task),
		stats:       make(map[string]*tagStats),
		store:       store,
		alarms:      alarms,
		sink:        event.Discard,
		factories:   make(map[string]device.Factory),
		inflight:    device.NewLimiter(DefaultMaxInflight),
		readTimeout: DefaultReadTimeout,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		started:     atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply replaces the active configuration. Either the whole set is accepted or nothing changes.
// Live state of tags present in both sets is kept.
func (s *Scheduler) Apply(version string, devices []*v1.Device, tags []*runtime.Tag) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	nextDevices, nextTags, err := s.prepare(devices, tags)
	if err != nil {
		return err
	}

	s.mu.RLock()
	prevDevices, prevTags := s.devices, s.tags
	s.mu.RUnlock()

	goneDevices, keptDevices, newDevices := differenceutil.DifferenceAndIntersectionStrings(
		differenceutil.Keys(prevDevices), differenceutil.Keys(nextDevices))
	replaced := sets.NewString(goneDevices...)
	for _, id := range keptDevices {
		if !reflect.DeepEqual(prevDevices[id], nextDevices[id]) {
			replaced.Insert(id)
			newDevices = append(newDevices, id)
		}
	}

	goneTags, keptTags, _ := differenceutil.DifferenceAndIntersectionStrings(
		differenceutil.Keys(prevTags), differenceutil.Keys(nextTags))

	// stop tasks that are removed, rebound or rescheduled
	stop := sets.NewString(goneTags...)
	resetTags := make([]string, 0)
	forgetAlarms := sets.NewString(goneTags...)
	for _, id := range keptTags {
		prev, next := prevTags[id], nextTags[id]
		if !prev.SameScanConfig(next) || replaced.Has(next.DeviceID) {
			stop.Insert(id)
		}
		if prev.DataType != next.DataType {
			resetTags = append(resetTags, id)
		}
		if !sameAlarmConfig(prev, next) {
			forgetAlarms.Insert(id)
		}
	}
	s.stopTasks(stop.List())

	nextQueues := make(map[string]*device.Queue, len(nextDevices))
	oldQueues := make([]*device.Queue, 0)
	s.mu.Lock()
	for id, q := range s.queues {
		if replaced.Has(id) {
			oldQueues = append(oldQueues, q)
			continue
		}
		nextQueues[id] = q
	}
	for _, id := range newDevices {
		d := nextDevices[id]
		nextQueues[id] = device.NewQueue(d, s.factories[d.Protocol], device.WithLimiter(s.inflight))
	}
	s.version = version
	s.devices = nextDevices
	s.tags = nextTags
	s.queues = nextQueues
	for id := range nextTags {
		if _, ok := s.stats[id]; !ok {
			s.stats[id] = newTagStats()
		}
	}
	for _, id := range goneTags {
		delete(s.stats, id)
	}
	s.store.Sync(differenceutil.Keys(nextTags))
	s.mu.Unlock()

	for _, id := range resetTags {
		_ = s.store.Reset(id)
	}
	for _, id := range forgetAlarms.UnsortedList() {
		s.alarms.Forget(id)
	}
	s.closeQueues(oldQueues)
	s.seedVirtualTags(nextTags, prevTags)

	if s.started.Load() {
		s.startTasks()
	}
	klog.InfoS("Applied tag configuration", "version", version, "tags", len(nextTags), "devices", len(nextDevices),
		"removedTags", len(goneTags), "restartedTasks", stop.Len())
	return nil
}

func (s *Scheduler) prepare(devices []*v1.Device, tags []*runtime.Tag) (map[string]*v1.Device, map[string]*runtime.Tag, error) {
	var errs []error
	nextDevices := make(map[string]*v1.Device, len(devices))
	for _, d := range devices {
		if _, dup := nextDevices[d.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate device id %s", d.ID))
			continue
		}
		if _, ok := s.factories[d.Protocol]; !ok {
			errs = append(errs, fmt.Errorf("device %s: %w: %s", d.ID, constant.ErrDeviceType, d.Protocol))
			continue
		}
		copied := *d
		nextDevices[d.ID] = &copied
	}
	nextTags := make(map[string]*runtime.Tag, len(tags))
	for _, t := range tags {
		if _, dup := nextTags[t.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate tag id %s", t.ID))
			continue
		}
		if t.IsScannable() {
			if _, ok := nextDevices[t.DeviceID]; !ok {
				errs = append(errs, fmt.Errorf("tag %s: %w: %s", t.ID, constant.ErrDeviceNotFound, t.DeviceID))
				continue
			}
		}
		nextTags[t.ID] = t.DeepCopy()
	}
	if len(errs) > 0 {
		return nil, nil, utilerrors.NewAggregate(errs)
	}
	return nextDevices, nextTags, nil
}

// seedVirtualTags stores the configured initial value of virtual tags that have never held one.
func (s *Scheduler) seedVirtualTags(next, prev map[string]*runtime.Tag) {
	for id, t := range next {
		if t.TagType != constant.Virtual || t.CurrentValue.IsNull() {
			continue
		}
		if _, existed := prev[id]; existed {
			continue
		}
		if _, err := s.store.Update(id, t.CurrentValue, constant.Good, s.now()); err != nil {
			klog.V(2).InfoS("Failed to seed virtual tag", "tagId", id, "err", err)
		}
	}
}

func sameAlarmConfig(a, b *runtime.Tag) bool {
	return a.AlarmEnabled == b.AlarmEnabled &&
		reflect.DeepEqual(a.HighAlarmLimit, b.HighAlarmLimit) &&
		reflect.DeepEqual(a.LowAlarmLimit, b.LowAlarmLimit)
}

// Start launches a scan task for every scannable tag.
func (s *Scheduler) Start() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.ctx.Err() != nil {
		klog.V(1).InfoS("Scheduler already stopped")
		return
	}
	if !s.started.CAS(false, true) {
		return
	}
	s.startTasks()
	klog.InfoS("Scheduler started", "tags", s.TaskCount())
}

// startTasks must be called with ctl held.
func (s *Scheduler) startTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tags {
		if _, running := s.tasks[id]; running || !t.IsScannable() {
			continue
		}
		q, ok := s.queues[t.DeviceID]
		if !ok {
			klog.V(2).InfoS("Failed to find device queue", "tagId", id, "deviceId", t.DeviceID)
			continue
		}
		s.tasks[id] = s.spawn(t, q)
	}
}

// spawn must be called with mu held.
func (s *Scheduler) spawn(t *runtime.Tag, q *device.Queue) *task {
	ctx, cancel := context.WithCancel(s.ctx)
	tk := &task{tagID: t.ID, queue: q, cancel: cancel, done: make(chan struct{})}
	s.wg.Add(1)
	go s.run(ctx, tk, t.ScanInterval())
	return tk
}

// stopTasks cancels the tasks of ids and waits for them to exit. It must be called with ctl held.
func (s *Scheduler) stopTasks(ids []string) {
	stopped := make([]*task, 0, len(ids))
	s.mu.Lock()
	for _, id := range ids {
		if tk, ok := s.tasks[id]; ok {
			tk.cancel()
			stopped = append(stopped, tk)
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()
	for _, tk := range stopped {
		<-tk.done
	}
}

func (s *Scheduler) closeQueues(queues []*device.Queue) {
	for _, q := range queues {
		ctx, cancel := context.WithTimeout(context.Background(), s.readTimeout)
		if err := q.Close(ctx); err != nil {
			klog.V(2).InfoS("Failed to close device queue", "deviceId", q.DeviceID(), "err", err)
		}
		cancel()
	}
}

// Enable turns scanning of a tag on. Scanning resumes on a fresh tick boundary.
func (s *Scheduler) Enable(tagID string) error {
	return s.setEnabled(tagID, true)
}

// Disable stops scanning a tag. An in-flight read is cancelled.
func (s *Scheduler) Disable(tagID string) error {
	return s.setEnabled(tagID, false)
}

func (s *Scheduler) setEnabled(tagID string, enabled bool) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	t, ok := s.tags[tagID]
	if !ok {
		s.mu.Unlock()
		return &runtime.UnknownTagError{TagID: tagID}
	}
	if t.IsEnabled == enabled {
		s.mu.Unlock()
		return nil
	}
	updated := t.DeepCopy()
	updated.IsEnabled = enabled
	updated.UpdatedAt = s.now()
	s.tags[tagID] = updated
	s.mu.Unlock()

	if enabled {
		if s.started.Load() {
			s.startTasks()
		}
	} else {
		s.stopTasks([]string{tagID})
	}
	klog.V(2).InfoS("Switched tag scanning", "tagId", tagID, "enabled", enabled)
	return nil
}

// Stop cancels every scan task, waits for them and closes all device queues.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		klog.V(1).InfoS("Timed out waiting for scan tasks")
	}

	s.mu.Lock()
	queues := make([]*device.Queue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	var errs []error
	for _, q := range queues {
		if err := q.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close device %s: %w", q.DeviceID(), err))
		}
	}
	s.started.Store(false)
	klog.InfoS("Scheduler stopped")
	return utilerrors.NewAggregate(errs)
}

func (s *Scheduler) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Scheduler) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Running reports whether a scan task is active for the tag.
func (s *Scheduler) Running(tagID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[tagID]
	return ok
}

// Tag returns a copy of the tag configuration merged with its live state.
func (s *Scheduler) Tag(tagID string) (*runtime.Tag, error) {
	s.mu.RLock()
	t, ok := s.tags[tagID]
	s.mu.RUnlock()
	if !ok {
		return nil, &runtime.UnknownTagError{TagID: tagID}
	}
	snap, err := s.store.Read(tagID)
	if err != nil {
		return nil, err
	}
	return state.Apply(t, snap), nil
}

// Tags lists tags matching the filter, ordered by name.
func (s *Scheduler) Tags(filter *runtime.TagFilter) []*runtime.Tag {
	s.mu.RLock()
	configured := make([]*runtime.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		configured = append(configured, t)
	}
	s.mu.RUnlock()

	predicates := runtime.ParseTagFilter(filter)
	out := make([]*runtime.Tag, 0, len(configured))
	for _, t := range configured {
		snap, err := s.store.Read(t.ID)
		if err != nil {
			continue
		}
		live := state.Apply(t, snap)
		if runtime.Match(live, predicates) {
			out = append(out, live)
		}
	}
	byName := func(t1, t2 *runtime.Tag) bool { return t1.Name < t2.Name }
	runtime.ByTag(byName).Sort(out)
	return out
}

// Alarms lists tags currently in alarm.
func (s *Scheduler) Alarms() []alarm.Status {
	return s.alarms.Active()
}

func (s *Scheduler) lookup(tagID string) (*runtime.Tag, *tagStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[tagID]
	if !ok {
		return nil, nil, false
	}
	return t, s.stats[tagID], true
}
