// Package device defines the port a protocol adapter exposes to the scanner and the
// per-device queues that serialize access to it.
package device

import (
	"context"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	v1 "tagscan/pkg/v1"
)

// Port is one connection to a device.
type Port interface {
	Read(ctx context.Context, address string, dataType constant.DataType) (runtime.Value, error)
	Write(ctx context.Context, address string, value runtime.Value) error
	Close(ctx context.Context) error
}

// BatchReader is implemented by ports that can read several addresses in one round trip.
// Results are positional; a per-item error does not fail the batch.
type BatchReader interface {
	ReadBatch(ctx context.Context, requests []ReadRequest) []ReadResult
}

type ReadRequest struct {
	Address  string
	DataType constant.DataType
}

type ReadResult struct {
	Value runtime.Value
	Err   error
}

// Factory opens a port for a configured device.
type Factory func(device *v1.Device) (Port, error)
