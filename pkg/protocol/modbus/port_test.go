package modbus

import (
	"context"
	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"tagscan/pkg/device"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/utils/binutil"
	"testing"
)

type readCall struct {
	table    Table
	offset   uint16
	quantity uint16
}

type fakeClient struct {
	registers map[uint16]uint16
	coils     map[uint16]bool
	reads     []readCall
	writes    map[uint16][]byte
	err       error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		registers: make(map[uint16]uint16),
		coils:     make(map[uint16]bool),
		writes:    make(map[uint16][]byte),
	}
}

func (f *fakeClient) bits(table Table, address, quantity uint16) ([]byte, error) {
	f.reads = append(f.reads, readCall{table, address, quantity})
	if f.err != nil {
		return nil, f.err
	}
	out := make([]byte, (quantity+7)/8)
	for i := uint16(0); i < quantity; i++ {
		if f.coils[address+i] {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out, nil
}

func (f *fakeClient) words(table Table, address, quantity uint16) ([]byte, error) {
	f.reads = append(f.reads, readCall{table, address, quantity})
	if f.err != nil {
		return nil, f.err
	}
	out := make([]byte, int(quantity)*2)
	for i := uint16(0); i < quantity; i++ {
		binutil.WriteUint16(out[i*2:], f.registers[address+i])
	}
	return out, nil
}

func (f *fakeClient) ReadCoils(address, quantity uint16) ([]byte, error) {
	return f.bits(Coil, address, quantity)
}

func (f *fakeClient) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	return f.bits(DiscreteInput, address, quantity)
}

func (f *fakeClient) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return f.words(InputRegister, address, quantity)
}

func (f *fakeClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return f.words(HoldingRegister, address, quantity)
}

func (f *fakeClient) WriteSingleCoil(address, value uint16) ([]byte, error) {
	f.writes[address] = []byte{byte(value >> 8), byte(value)}
	f.coils[address] = value == coilOn
	return nil, f.err
}

func (f *fakeClient) WriteSingleRegister(address, value uint16) ([]byte, error) {
	f.writes[address] = []byte{byte(value >> 8), byte(value)}
	f.registers[address] = value
	return nil, f.err
}

func (f *fakeClient) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.writes[address] = binutil.Dup(value)
	for i := uint16(0); i < quantity; i++ {
		f.registers[address+i] = binutil.ParseUint16(value[i*2:])
	}
	return nil, f.err
}

func newTestPort(c *fakeClient) *Port {
	return &Port{deviceID: "plc-1", client: c, layout: binutil.ABCD}
}

func TestPortRead(t *testing.T) {
	c := newFakeClient()
	c.registers[0] = 0x0102
	c.registers[9] = 0x4049
	c.registers[10] = 0x0FDB
	c.coils[4] = true
	p := newTestPort(c)

	v, err := p.Read(context.TODO(), "40001", constant.Int16)
	require.NoError(t, err)
	assert.True(t, runtime.IntValue(constant.Int16, 0x0102).Equal(v))

	v, err = p.Read(context.TODO(), "40010", constant.Float)
	require.NoError(t, err)
	f, _ := v.Float64()
	assert.InDelta(t, 3.14159, f, 1e-5)
	assert.Equal(t, readCall{HoldingRegister, 9, 2}, c.reads[len(c.reads)-1])

	v, err = p.Read(context.TODO(), "00005", constant.Boolean)
	require.NoError(t, err)
	b, _ := v.Bool()
	assert.True(t, b)

	_, err = p.Read(context.TODO(), "9", constant.Int16)
	assert.Error(t, err)
}

func TestPortReadCanceled(t *testing.T) {
	p := newTestPort(newFakeClient())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Read(ctx, "40001", constant.Int16)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPortReadBatch(t *testing.T) {
	c := newFakeClient()
	c.registers[0] = 7
	c.registers[1] = 0x3FC0
	c.registers[9] = 9
	c.registers[299] = 300
	c.coils[2] = true
	p := newTestPort(c)

	results := p.ReadBatch(context.TODO(), []device.ReadRequest{
		{Address: "40010", DataType: constant.Int16},
		{Address: "00003", DataType: constant.Boolean},
		{Address: "40001", DataType: constant.Int16},
		{Address: "bogus", DataType: constant.Int16},
		{Address: "40300", DataType: constant.Int16},
		{Address: "40002", DataType: constant.Float},
		{Address: "00005", DataType: constant.Boolean},
	})
	require.Len(t, results, 7)

	assert.True(t, runtime.IntValue(constant.Int16, 9).Equal(results[0].Value))
	b, _ := results[1].Value.Bool()
	assert.True(t, b)
	assert.True(t, runtime.IntValue(constant.Int16, 7).Equal(results[2].Value))
	assert.Error(t, results[3].Err)
	assert.True(t, runtime.IntValue(constant.Int16, 300).Equal(results[4].Value))
	f, _ := results[5].Value.Float64()
	assert.Equal(t, 1.5, f)
	b, _ = results[6].Value.Bool()
	assert.False(t, b)
	for i, r := range results {
		if i != 3 {
			assert.NoError(t, r.Err, i)
		}
	}

	assert.ElementsMatch(t, []readCall{
		{Coil, 2, 3},
		{HoldingRegister, 0, 10},
		{HoldingRegister, 299, 1},
	}, c.reads)
}

func TestPortReadBatchFailure(t *testing.T) {
	c := newFakeClient()
	c.err = io.EOF
	p := newTestPort(c)

	results := p.ReadBatch(context.TODO(), []device.ReadRequest{
		{Address: "40001", DataType: constant.Int16},
		{Address: "40002", DataType: constant.Int16},
	})
	for _, r := range results {
		assert.ErrorIs(t, r.Err, constant.ErrConnectDevice)
	}
	assert.Len(t, c.reads, 1)
}

func TestPortWrite(t *testing.T) {
	c := newFakeClient()
	p := newTestPort(c)

	require.NoError(t, p.Write(context.TODO(), "40001", runtime.IntValue(constant.Int16, -1)))
	assert.Equal(t, []byte{0xFF, 0xFF}, c.writes[0])

	require.NoError(t, p.Write(context.TODO(), "40011", runtime.FloatValue(constant.Float, 1.5)))
	assert.Equal(t, []byte{0x3F, 0xC0, 0x00, 0x00}, c.writes[10])

	require.NoError(t, p.Write(context.TODO(), "00002", runtime.BoolValue(true)))
	assert.True(t, c.coils[1])
	require.NoError(t, p.Write(context.TODO(), "00002", runtime.IntValue(constant.Int16, 0)))
	assert.False(t, c.coils[1])

	v, err := p.Read(context.TODO(), "40011", constant.Float)
	require.NoError(t, err)
	f, _ := v.Float64()
	assert.Equal(t, 1.5, f)
}

func TestPortWriteRejected(t *testing.T) {
	p := newTestPort(newFakeClient())
	assert.Error(t, p.Write(context.TODO(), "30001", runtime.IntValue(constant.Int16, 1)))
	assert.Error(t, p.Write(context.TODO(), "10001", runtime.BoolValue(true)))
	assert.Error(t, p.Write(context.TODO(), "40001.2", runtime.BoolValue(true)))
	assert.Error(t, p.Write(context.TODO(), "40001", runtime.NullValue()))
	assert.Error(t, p.Write(context.TODO(), "00001", runtime.StringValue("on")))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(io.EOF), constant.ErrConnectDevice)

	mbErr := &modbus.ModbusError{FunctionCode: 3, ExceptionCode: modbus.ExceptionCodeIllegalDataAddress}
	err := classify(mbErr)
	assert.False(t, errors.Is(err, constant.ErrConnectDevice))
	assert.Equal(t, mbErr, err)
}

func TestPortCloseWithoutHandler(t *testing.T) {
	assert.NoError(t, newTestPort(newFakeClient()).Close(context.TODO()))
}
