package device

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
	"sync"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	v1 "tagscan/pkg/v1"
	"time"
)

type request struct {
	ctx      context.Context
	read     ReadRequest
	write    bool
	value    runtime.Value
	resultCh chan ReadResult
}

func (r *request) reply(res ReadResult) {
	// resultCh has capacity 1 and receives exactly one reply
	r.resultCh <- res
}

// QueueStats describes the load on one device queue.
type QueueStats struct {
	DeviceID string `json:"deviceId"`
	Protocol string `json:"protocol"`
	Workers  int    `json:"workers"`
	Pending  int    `json:"pending"`
	Reads    uint64 `json:"reads"`
	Writes   uint64 `json:"writes"`
	Batches  uint64 `json:"batches"`
	Failures uint64 `json:"failures"`
	Dials    uint64 `json:"dials"`
}

// Queue serializes access to one device. Each worker owns one port, so a device
// configured with concurrency n never sees more than n requests at a time.
type Queue struct {
	device   *v1.Device
	factory  Factory
	requests chan *request
	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	closed   *atomic.Bool
	limiter  Limiter

	reads    *atomic.Uint64
	writes   *atomic.Uint64
	batches  *atomic.Uint64
	failures *atomic.Uint64
	dials    *atomic.Uint64
}

type worker struct {
	index    int
	port     Port
	lastDial time.Time
	lastErr  error
	pending  *request
}

func NewQueue(device *v1.Device, factory Factory, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		device:   device,
		factory:  factory,
		requests: make(chan *request, defaultQueueDepth),
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		closed:   atomic.NewBool(false),
		reads:    atomic.NewUint64(0),
		writes:   atomic.NewUint64(0),
		batches:  atomic.NewUint64(0),
		failures: atomic.NewUint64(0),
		dials:    atomic.NewUint64(0),
	}
	for _, opt := range opts {
		opt(q)
	}
	for i := 0; i < device.GetConcurrency(); i++ {
		q.wg.Add(1)
		go q.work(&worker{index: i})
	}
	return q
}

func (q *Queue) DeviceID() string {
	return q.device.ID
}

func (q *Queue) Read(ctx context.Context, address string, dataType constant.DataType) (runtime.Value, error) {
	res := q.submit(ctx, &request{
		ctx:      ctx,
		read:     ReadRequest{Address: address, DataType: dataType},
		resultCh: make(chan ReadResult, 1),
	})
	return res.Value, res.Err
}

func (q *Queue) Write(ctx context.Context, address string, value runtime.Value) error {
	res := q.submit(ctx, &request{
		ctx:      ctx,
		read:     ReadRequest{Address: address, DataType: value.Kind()},
		write:    true,
		value:    value,
		resultCh: make(chan ReadResult, 1),
	})
	return res.Err
}

func (q *Queue) submit(ctx context.Context, r *request) ReadResult {
	if q.closed.Load() {
		return ReadResult{Err: constant.ErrDeviceServerClosed}
	}
	select {
	case q.requests <- r:
	case <-ctx.Done():
		return ReadResult{Err: ctx.Err()}
	case <-q.stopCh:
		return ReadResult{Err: constant.ErrDeviceServerClosed}
	}
	select {
	case res := <-r.resultCh:
		return res
	case <-ctx.Done():
		return ReadResult{Err: ctx.Err()}
	case <-q.stopCh:
		return ReadResult{Err: constant.ErrDeviceServerClosed}
	}
}

func (q *Queue) work(w *worker) {
	defer q.wg.Done()
	defer q.closePort(w)
	for {
		var first *request
		if w.pending != nil {
			first, w.pending = w.pending, nil
		} else {
			select {
			case <-q.stopCh:
				return
			case first = <-q.requests:
			}
		}
		if first.write {
			q.serveWrite(w, first)
			continue
		}
		q.serveReads(w, q.collect(w, first))
	}
}

// collect gathers reads already waiting behind first. A write stops the batch and is served next.
func (q *Queue) collect(w *worker, first *request) []*request {
	batch := []*request{first}
	for len(batch) < maxBatchSize {
		select {
		case r := <-q.requests:
			if r.write {
				w.pending = r
				return batch
			}
			batch = append(batch, r)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue) connect(w *worker) (Port, error) {
	if w.port != nil {
		return w.port, nil
	}
	if w.lastErr != nil && time.Since(w.lastDial) < reconnectBackoff {
		return nil, w.lastErr
	}
	w.lastDial = time.Now()
	q.dials.Inc()
	port, err := q.safeOpen()
	if err != nil {
		klog.V(2).InfoS("Failed to open device port", "deviceId", q.device.ID, "worker", w.index, "err", err)
		w.lastErr = errors.Wrapf(constant.ErrConnectDevice, "open %s port: %v", q.device.Protocol, err)
		return nil, w.lastErr
	}
	klog.V(3).InfoS("Opened device port", "deviceId", q.device.ID, "worker", w.index)
	w.port, w.lastErr = port, nil
	return port, nil
}

func (q *Queue) safeOpen() (port Port, err error) {
	defer func() {
		if r := recover(); r != nil {
			port, err = nil, fmt.Errorf("open port panic: %v", r)
		}
	}()
	return q.factory(q.device)
}

func (q *Queue) serveWrite(w *worker, r *request) {
	q.writes.Inc()
	if err := r.ctx.Err(); err != nil {
		r.reply(ReadResult{Err: err})
		return
	}
	port, err := q.connect(w)
	if err != nil {
		q.failures.Inc()
		r.reply(ReadResult{Err: q.wrap(r.read.Address, err)})
		return
	}
	ctx, cancel := q.callContext(r.ctx)
	defer cancel()
	if err := q.limiter.acquire(ctx); err != nil {
		r.reply(ReadResult{Err: err})
		return
	}
	err = q.safeWrite(ctx, w, port, r)
	q.limiter.release()
	if err != nil {
		q.failures.Inc()
		r.reply(ReadResult{Err: q.wrap(r.read.Address, err)})
		return
	}
	r.reply(ReadResult{})
}

func (q *Queue) serveReads(w *worker, batch []*request) {
	live := make([]*request, 0, len(batch))
	for _, r := range batch {
		if err := r.ctx.Err(); err != nil {
			r.reply(ReadResult{Err: err})
			continue
		}
		live = append(live, r)
	}
	if len(live) == 0 {
		return
	}
	q.reads.Add(uint64(len(live)))

	port, err := q.connect(w)
	if err != nil {
		q.failures.Add(uint64(len(live)))
		for _, r := range live {
			r.reply(ReadResult{Err: q.wrap(r.read.Address, err)})
		}
		return
	}

	br, isBatch := port.(BatchReader)
	if isBatch && len(live) > 1 {
		q.batches.Inc()
		ctx, cancel := q.batchContext(live)
		defer cancel()
		if err := q.limiter.acquire(ctx); err != nil {
			for _, r := range live {
				r.reply(ReadResult{Err: err})
			}
			return
		}
		results := q.safeBatch(ctx, w, br, live)
		q.limiter.release()
		for i, r := range live {
			res := results[i]
			if res.Err != nil {
				q.failures.Inc()
				res.Err = q.wrap(r.read.Address, res.Err)
			}
			r.reply(res)
		}
		return
	}

	for i, r := range live {
		if w.port == nil {
			if port, err = q.connect(w); err != nil {
				for _, rest := range live[i:] {
					q.failures.Inc()
					rest.reply(ReadResult{Err: q.wrap(rest.read.Address, err)})
				}
				return
			}
		}
		ctx, cancel := q.callContext(r.ctx)
		if err := q.limiter.acquire(ctx); err != nil {
			cancel()
			r.reply(ReadResult{Err: err})
			continue
		}
		v, err := q.safeRead(ctx, w, port, r)
		q.limiter.release()
		cancel()
		if err != nil {
			q.failures.Inc()
			r.reply(ReadResult{Err: q.wrap(r.read.Address, err)})
			continue
		}
		r.reply(ReadResult{Value: v})
	}
}

// callContext bounds a port call by the caller's deadline, the device timeout and queue shutdown.
func (q *Queue) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	deadline, _ := parent.Deadline()
	return q.boundContext(deadline)
}

// batchContext bounds a batch by the latest deadline of its requests. A request
// without a deadline leaves the batch bounded by the device timeout alone.
func (q *Queue) batchContext(live []*request) (context.Context, context.CancelFunc) {
	var latest time.Time
	for _, r := range live {
		deadline, ok := r.ctx.Deadline()
		if !ok {
			return q.boundContext(time.Time{})
		}
		if deadline.After(latest) {
			latest = deadline
		}
	}
	return q.boundContext(latest)
}

func (q *Queue) boundContext(deadline time.Time) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(q.ctx, q.device.GetTimeout())
	if deadline.IsZero() {
		return ctx, cancel
	}
	inner, innerCancel := context.WithDeadline(ctx, deadline)
	return inner, func() {
		innerCancel()
		cancel()
	}
}

func (q *Queue) safeRead(ctx context.Context, w *worker, port Port, r *request) (v runtime.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			klog.ErrorS(nil, "Recovered from port panic", "deviceId", q.device.ID, "address", r.read.Address, "panic", p)
			err = fmt.Errorf("port panic: %v", p)
			q.dropPort(w)
		}
	}()
	v, err = port.Read(ctx, r.read.Address, r.read.DataType)
	if err != nil && errors.Is(err, constant.ErrConnectDevice) {
		q.dropPort(w)
	}
	return v, err
}

func (q *Queue) safeWrite(ctx context.Context, w *worker, port Port, r *request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			klog.ErrorS(nil, "Recovered from port panic", "deviceId", q.device.ID, "address", r.read.Address, "panic", p)
			err = fmt.Errorf("port panic: %v", p)
			q.dropPort(w)
		}
	}()
	err = port.Write(ctx, r.read.Address, r.value)
	if err != nil && errors.Is(err, constant.ErrConnectDevice) {
		q.dropPort(w)
	}
	return err
}

func (q *Queue) safeBatch(ctx context.Context, w *worker, br BatchReader, live []*request) (results []ReadResult) {
	requests := make([]ReadRequest, 0, len(live))
	for _, r := range live {
		requests = append(requests, r.read)
	}
	defer func() {
		if p := recover(); p != nil {
			klog.ErrorS(nil, "Recovered from port panic", "deviceId", q.device.ID, "batch", len(requests), "panic", p)
			results = failAll(len(requests), fmt.Errorf("port panic: %v", p))
			q.dropPort(w)
		}
	}()
	results = br.ReadBatch(ctx, requests)
	if len(results) != len(requests) {
		return failAll(len(requests), fmt.Errorf("batch returned %d results for %d requests", len(results), len(requests)))
	}
	return results
}

func failAll(n int, err error) []ReadResult {
	results := make([]ReadResult, n)
	for i := range results {
		results[i].Err = err
	}
	return results
}

func (q *Queue) wrap(address string, err error) error {
	if runtime.IsDeviceCommunicationError(err) {
		return err
	}
	return &runtime.DeviceCommunicationError{DeviceID: q.device.ID, Address: address, Err: err}
}

func (q *Queue) dropPort(w *worker) {
	q.closePort(w)
	w.port = nil
}

func (q *Queue) closePort(w *worker) {
	if w.port == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.device.GetTimeout())
	defer cancel()
	if err := w.port.Close(ctx); err != nil {
		klog.V(3).InfoS("Failed to close device port", "deviceId", q.device.ID, "err", err)
	}
}

func (q *Queue) Stats() QueueStats {
	return QueueStats{
		DeviceID: q.device.ID,
		Protocol: q.device.Protocol,
		Workers:  q.device.GetConcurrency(),
		Pending:  len(q.requests),
		Reads:    q.reads.Load(),
		Writes:   q.writes.Load(),
		Batches:  q.batches.Load(),
		Failures: q.failures.Load(),
		Dials:    q.dials.Load(),
	}
}

// Close rejects new requests, aborts in flight port calls and closes every port.
func (q *Queue) Close(ctx context.Context) error {
	q.once.Do(func() {
		q.closed.Store(true)
		close(q.stopCh)
		q.cancel()
	})
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
