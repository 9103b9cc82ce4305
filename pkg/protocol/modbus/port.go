// Package modbus adapts goburrow/modbus clients to the scanner's device port.
package modbus

import (
	"context"
	"fmt"
	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
	"io"
	"k8s.io/klog/v2"
	"net"
	"sort"
	"strings"
	"tagscan/pkg/device"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/utils/binutil"
	v1 "tagscan/pkg/v1"
)

const (
	defaultTCPPort  = 502
	defaultBaudRate = 9600
	coilOn          = 0xFF00
)

var _ device.Port = (*Port)(nil)
var _ device.BatchReader = (*Port)(nil)

// handler is a goburrow transport that owns its connection.
type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// client is the subset of modbus.Client the port uses.
type client interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

type Port struct {
	deviceID string
	handler  handler
	client   client
	layout   binutil.Layout
}

// NewTCPPort connects to a modbus TCP slave.
func NewTCPPort(d *v1.Device) (device.Port, error) {
	settings, err := settingsOf(d)
	if err != nil {
		return nil, err
	}
	endpoint := settings.Address.Location
	if !strings.Contains(endpoint, ":") {
		port := defaultTCPPort
		if settings.Address.Option != nil && settings.Address.Option.Port > 0 {
			port = settings.Address.Option.Port
		}
		endpoint = fmt.Sprintf("%s:%d", endpoint, port)
	}
	h := modbus.NewTCPClientHandler(endpoint)
	h.Timeout = d.GetTimeout()
	h.SlaveId = settings.Slave
	return open(d, h, settings)
}

// NewRTUPort opens a serial line to a modbus RTU slave.
func NewRTUPort(d *v1.Device) (device.Port, error) {
	settings, err := settingsOf(d)
	if err != nil {
		return nil, err
	}
	h := modbus.NewRTUClientHandler(settings.Address.Location)
	h.BaudRate = defaultBaudRate
	if o := settings.Address.Option; o != nil {
		if o.BaudRate > 0 {
			h.BaudRate = o.BaudRate
		}
		if o.DataBits > 0 {
			h.DataBits = o.DataBits
		}
		if o.StopBits > 0 {
			h.StopBits = o.StopBits
		}
		switch strings.ToUpper(o.Parity) {
		case "", "N", "NONE":
			h.Parity = "N"
		case "E", "EVEN":
			h.Parity = "E"
		case "O", "ODD":
			h.Parity = "O"
		default:
			return nil, fmt.Errorf("unsupported parity %q", o.Parity)
		}
	}
	h.Timeout = d.GetTimeout()
	h.SlaveId = settings.Slave
	return open(d, h, settings)
}

func settingsOf(d *v1.Device) (*v1.ModbusSettings, error) {
	if d.Modbus == nil || d.Modbus.Address == nil || len(d.Modbus.Address.Location) == 0 {
		return nil, fmt.Errorf("device %s: modbus address is required", d.ID)
	}
	return d.Modbus, nil
}

func open(d *v1.Device, h handler, settings *v1.ModbusSettings) (device.Port, error) {
	layout := binutil.ABCD
	if len(settings.MemoryLayout) > 0 {
		l, ok := binutil.StringToLayout[settings.MemoryLayout]
		if !ok {
			return nil, fmt.Errorf("device %s: unknown memory layout %s", d.ID, settings.MemoryLayout)
		}
		layout = l
	}
	if err := h.Connect(); err != nil {
		return nil, errors.Wrapf(err, "connect modbus device %s", d.ID)
	}
	klog.V(3).InfoS("Connected modbus device", "deviceId", d.ID, "protocol", d.Protocol)
	return &Port{deviceID: d.ID, handler: h, client: modbus.NewClient(h), layout: layout}, nil
}

func (p *Port) Read(ctx context.Context, address string, dataType constant.DataType) (runtime.Value, error) {
	if err := ctx.Err(); err != nil {
		return runtime.Value{}, err
	}
	a, err := ParseAddress(address)
	if err != nil {
		return runtime.Value{}, err
	}
	data, err := p.read(a.Table, a.Offset, a.Quantity(dataType))
	if err != nil {
		return runtime.Value{}, err
	}
	return decode(a, dataType, data, p.layout)
}

func (p *Port) read(table Table, offset, quantity uint16) ([]byte, error) {
	var data []byte
	var err error
	switch table {
	case Coil:
		data, err = p.client.ReadCoils(offset, quantity)
	case DiscreteInput:
		data, err = p.client.ReadDiscreteInputs(offset, quantity)
	case InputRegister:
		data, err = p.client.ReadInputRegisters(offset, quantity)
	case HoldingRegister:
		data, err = p.client.ReadHoldingRegisters(offset, quantity)
	}
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

type span struct {
	table   Table
	start   uint32
	end     uint32 // exclusive
	members []int
}

// ReadBatch merges requests on the same table into as few reads as the protocol
// limits allow and slices each value out of the merged response.
func (p *Port) ReadBatch(ctx context.Context, requests []device.ReadRequest) []device.ReadResult {
	results := make([]device.ReadResult, len(requests))
	addrs := make([]*Address, len(requests))
	order := make([]int, 0, len(requests))
	for i, r := range requests {
		a, err := ParseAddress(r.Address)
		if err != nil {
			results[i].Err = err
			continue
		}
		addrs[i] = a
		order = append(order, i)
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := addrs[order[x]], addrs[order[y]]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Offset < b.Offset
	})

	spans := make([]*span, 0)
	for _, i := range order {
		a := addrs[i]
		end := uint32(a.Offset) + uint32(a.Quantity(requests[i].DataType))
		if len(spans) > 0 {
			last := spans[len(spans)-1]
			if last.table == a.Table && end-last.start <= uint32(a.Table.maxSpan()) {
				if end > last.end {
					last.end = end
				}
				last.members = append(last.members, i)
				continue
			}
		}
		spans = append(spans, &span{table: a.Table, start: uint32(a.Offset), end: end, members: []int{i}})
	}

	for _, s := range spans {
		if err := ctx.Err(); err != nil {
			for _, i := range s.members {
				results[i].Err = err
			}
			continue
		}
		data, err := p.read(s.table, uint16(s.start), uint16(s.end-s.start))
		if err != nil {
			for _, i := range s.members {
				results[i].Err = err
			}
			continue
		}
		for _, i := range s.members {
			a := addrs[i]
			rel := int(uint32(a.Offset) - s.start)
			var part []byte
			if s.table.IsBit() {
				part = shiftBits(data, rel)
			} else if rel*2 < len(data) {
				part = data[rel*2:]
			}
			results[i].Value, results[i].Err = decode(a, requests[i].DataType, part, p.layout)
		}
	}
	return results
}

// shiftBits returns the packed bit at position n as the first bit of a one byte slice.
func shiftBits(data []byte, n int) []byte {
	if binutil.Bit(data, n) {
		return []byte{1}
	}
	return []byte{0}
}

func (p *Port) Write(ctx context.Context, address string, value runtime.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := ParseAddress(address)
	if err != nil {
		return err
	}
	if !a.Table.Writable() {
		return fmt.Errorf("%s address %s is read only", a.Table, address)
	}
	if value.IsNull() {
		return fmt.Errorf("cannot write null to %s", address)
	}

	if a.Table == Coil {
		on, ok := value.Bool()
		if !ok {
			f, isNum := value.Float64()
			if !isNum {
				return fmt.Errorf("cannot write %s to coil %s", value.Kind(), address)
			}
			on = f != 0
		}
		var v uint16
		if on {
			v = coilOn
		}
		_, err = p.client.WriteSingleCoil(a.Offset, v)
		return classify(err)
	}

	if a.Bit >= 0 {
		return fmt.Errorf("writing single register bits is not supported: %s", address)
	}
	payload, err := encode(a, value, p.layout)
	if err != nil {
		return err
	}
	if len(payload) == 2 {
		_, err = p.client.WriteSingleRegister(a.Offset, binutil.ParseUint16(payload))
	} else {
		_, err = p.client.WriteMultipleRegisters(a.Offset, uint16(len(payload)/2), payload)
	}
	return classify(err)
}

func (p *Port) Close(ctx context.Context) error {
	if p.handler == nil {
		return nil
	}
	return p.handler.Close()
}

// classify marks transport failures so the queue reopens the port. Modbus exceptions keep the connection.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &netErr) {
		return errors.Wrapf(constant.ErrConnectDevice, "%v", err)
	}
	return err
}
