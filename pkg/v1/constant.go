package v1

const (
	ProtocolModbusTcp = "modbusTcp"
	ProtocolModbusRtu = "modbusRtu"
	ProtocolOpcUa     = "opcUa"
	ProtocolSimulator = "simulator"
)

const (
	DefaultDeviceConcurrency = 1
	DefaultDeviceTimeout     = 3000
)
