// Package simulator provides a device port that produces synthetic signals, for running
// the scanner without field hardware.
//
// Addresses select a signal generator:
//
//	random            uniform value in [0, 100)
//	sine[:period]     50 + 50*sin(2πt/period), period in seconds (default 60)
//	ramp[:period]     sawtooth from 0 to 100 over period seconds (default 60)
//	toggle            boolean flipping on every read
//	const:<value>     a fixed value
//
// Any other address is a memory cell: it reads back the last value written to it.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"tagscan/pkg/device"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/utils/randutil"
	v1 "tagscan/pkg/v1"
	"time"
)

const defaultPeriod = 60 * time.Second

var ErrSimulatedFailure = fmt.Errorf("simulated read failure: %w", constant.ErrReadTimeout)

var _ device.Port = (*Port)(nil)

type Port struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	start     time.Time
	now       func() time.Time
	failEvery int
	reads     int
	toggles   map[string]bool
	memory    map[string]runtime.Value
}

func NewPort(d *v1.Device) (device.Port, error) {
	seed := randutil.Int63n()
	failEvery := 0
	if d.Simulator != nil {
		if d.Simulator.Seed != 0 {
			seed = d.Simulator.Seed
		}
		failEvery = d.Simulator.FailEvery
	}
	return newPort(seed, failEvery, time.Now), nil
}

func newPort(seed int64, failEvery int, now func() time.Time) *Port {
	return &Port{
		rnd:       rand.New(rand.NewSource(seed)),
		start:     now(),
		now:       now,
		failEvery: failEvery,
		toggles:   make(map[string]bool),
		memory:    make(map[string]runtime.Value),
	}
}

func (p *Port) Read(ctx context.Context, address string, dataType constant.DataType) (runtime.Value, error) {
	if err := ctx.Err(); err != nil {
		return runtime.Value{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reads++
	if p.failEvery > 0 && p.reads%p.failEvery == 0 {
		return runtime.Value{}, ErrSimulatedFailure
	}

	kind, arg := split(address)
	elapsed := p.now().Sub(p.start).Seconds()
	switch kind {
	case "random":
		return runtime.ValueOf(dataType, p.rnd.Float64()*100)
	case "sine":
		period := periodOf(arg)
		return runtime.ValueOf(dataType, 50+50*math.Sin(2*math.Pi*elapsed/period))
	case "ramp":
		period := periodOf(arg)
		return runtime.ValueOf(dataType, math.Mod(elapsed, period)/period*100)
	case "toggle":
		next := !p.toggles[address]
		p.toggles[address] = next
		return runtime.ValueOf(dataType, next)
	case "const":
		return runtime.ParseValue(dataType, arg)
	}

	if v, ok := p.memory[address]; ok {
		return v.Convert(dataType)
	}
	return runtime.ValueOf(dataType, 0)
}

func (p *Port) Write(ctx context.Context, address string, value runtime.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kind, _ := split(address)
	switch kind {
	case "random", "sine", "ramp", "toggle", "const":
		return fmt.Errorf("simulated signal %s is read only", address)
	}
	p.mu.Lock()
	p.memory[address] = value
	p.mu.Unlock()
	return nil
}

func (p *Port) Close(ctx context.Context) error {
	return nil
}

func split(address string) (string, string) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(address), ":")
	return strings.ToLower(kind), arg
}

func periodOf(arg string) float64 {
	if s, err := strconv.ParseFloat(arg, 64); err == nil && s > 0 {
		return s
	}
	return defaultPeriod.Seconds()
}
