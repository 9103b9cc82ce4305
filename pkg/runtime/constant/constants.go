package constant

import "errors"

var (
	ErrDeviceType         = errors.New("unsupported device type")
	ErrConnectDevice      = errors.New("unable to connect to device")
	ErrDeviceServerClosed = errors.New("device server closed")
	ErrDeviceNotFound     = errors.New("device not bound")
	ErrReadTimeout        = errors.New("device read timed out")
	ErrAccessDenied       = errors.New("data access does not permit operation")
	ErrNotScannable       = errors.New("tag is not scanned")
)
