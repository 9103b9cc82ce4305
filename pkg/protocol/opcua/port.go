// Package opcua adapts gopcua clients to the scanner's device port. Tag addresses are
// node ids in their string form, e.g. "ns=2;s=Boiler.Temperature" or "ns=3;i=1001".
package opcua

import (
	"context"
	"fmt"
	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/pkg/errors"
	"io"
	"k8s.io/klog/v2"
	"strings"
	"tagscan/pkg/device"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	v1 "tagscan/pkg/v1"
)

var _ device.Port = (*Port)(nil)
var _ device.BatchReader = (*Port)(nil)

// session is the subset of *opcua.Client the port uses.
type session interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Write(ctx context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error)
	Close(ctx context.Context) error
}

type Port struct {
	deviceID string
	session  session
}

// NewPort opens a session to the device's OPC UA endpoint.
func NewPort(d *v1.Device) (device.Port, error) {
	if d.OpcUa == nil || d.OpcUa.Address == nil || len(d.OpcUa.Address.Location) == 0 {
		return nil, fmt.Errorf("device %s: opc ua endpoint is required", d.ID)
	}
	address := d.OpcUa.Address
	endpoint := address.Location
	opts := []opcua.Option{opcua.SecurityMode(ua.MessageSecurityModeNone)}
	if address.Option != nil {
		if address.Option.Port > 0 && strings.Count(endpoint, ":") < 2 {
			endpoint = fmt.Sprintf("%s:%d", endpoint, address.Option.Port)
		}
		if len(address.Option.Username) > 0 {
			opts = append(opts, opcua.AuthUsername(address.Option.Username, address.Option.Password))
		}
	}

	c, err := opcua.NewClient(endpoint, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "create opc ua client for device %s", d.ID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.GetTimeout())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		return nil, errors.Wrapf(err, "connect opc ua device %s", d.ID)
	}
	klog.V(3).InfoS("Connected opc ua server", "deviceId", d.ID, "endpoint", endpoint)
	return &Port{deviceID: d.ID, session: c}, nil
}

func (p *Port) Read(ctx context.Context, address string, dataType constant.DataType) (runtime.Value, error) {
	res := p.ReadBatch(ctx, []device.ReadRequest{{Address: address, DataType: dataType}})
	return res[0].Value, res[0].Err
}

// ReadBatch reads every node in a single read service call.
func (p *Port) ReadBatch(ctx context.Context, requests []device.ReadRequest) []device.ReadResult {
	results := make([]device.ReadResult, len(requests))
	nodes := make([]*ua.ReadValueID, 0, len(requests))
	index := make([]int, 0, len(requests))
	for i, r := range requests {
		id, err := ua.ParseNodeID(r.Address)
		if err != nil {
			results[i].Err = errors.Wrapf(err, "parse node id %q", r.Address)
			continue
		}
		nodes = append(nodes, &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue})
		index = append(index, i)
	}
	if len(nodes) == 0 {
		return results
	}

	resp, err := p.session.Read(ctx, &ua.ReadRequest{
		MaxAge:             0,
		NodesToRead:        nodes,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	})
	if err == nil && (resp == nil || len(resp.Results) != len(nodes)) {
		err = fmt.Errorf("opc ua read returned an incomplete response")
	}
	if err != nil {
		err = classify(err)
		for _, i := range index {
			results[i].Err = err
		}
		return results
	}

	for n, i := range index {
		dv := resp.Results[n]
		if dv.Status != ua.StatusOK {
			results[i].Err = dv.Status
			continue
		}
		var raw interface{}
		if dv.Value != nil {
			raw = dv.Value.Value()
		}
		results[i].Value, results[i].Err = runtime.ValueOf(requests[i].DataType, raw)
	}
	return results
}

func (p *Port) Write(ctx context.Context, address string, value runtime.Value) error {
	id, err := ua.ParseNodeID(address)
	if err != nil {
		return errors.Wrapf(err, "parse node id %q", address)
	}
	variant, err := ua.NewVariant(value.Interface())
	if err != nil {
		return errors.Wrapf(err, "encode %s value for %q", value.Kind(), address)
	}
	resp, err := p.session.Write(ctx, &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{{
			NodeID:      id,
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        variant,
			},
		}},
	})
	if err != nil {
		return classify(err)
	}
	if len(resp.Results) > 0 && resp.Results[0] != ua.StatusOK {
		return resp.Results[0]
	}
	return nil
}

func (p *Port) Close(ctx context.Context) error {
	return p.session.Close(ctx)
}

// classify marks session failures so the queue opens a fresh session on the next request.
func classify(err error) error {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, ua.StatusBadSessionIDInvalid),
		errors.Is(err, ua.StatusBadSessionNotActivated),
		errors.Is(err, ua.StatusBadSecureChannelIDInvalid),
		errors.Is(err, ua.StatusBadConnectionClosed):
		return errors.Wrapf(constant.ErrConnectDevice, "%v", err)
	}
	return err
}
