package generic

import (
	"tagscan/pkg/device"
	"tagscan/pkg/protocol/modbus"
	"tagscan/pkg/protocol/opcua"
	"tagscan/pkg/protocol/simulator"
	v1 "tagscan/pkg/v1"
)

// DevicePortFactories maps a device protocol to the adapter that opens its ports.
var DevicePortFactories = map[string]device.Factory{
	v1.ProtocolModbusTcp: modbus.NewTCPPort,
	v1.ProtocolModbusRtu: modbus.NewRTUPort,
	v1.ProtocolOpcUa:     opcua.NewPort,
	v1.ProtocolSimulator: simulator.NewPort,
}
