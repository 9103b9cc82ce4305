package v1

// modbus
// ModbusSettings addresses a modbus slave. MemoryLayout is the word and byte order of multi register values.
type ModbusSettings struct {
	Address      *ModbusAddress `json:"address" binding:"required"`
	Slave        uint8          `json:"slave"`
	MemoryLayout string         `json:"memoryLayout,omitempty"`
}

type ModbusAddress struct {
	Location string               `json:"location"`
	Option   *ModbusAddressOption `json:"option,omitempty"`
}

type ModbusAddressOption struct {
	Port     int    `json:"port,omitempty"`
	BaudRate int    `json:"baudRate,omitempty"`
	DataBits int    `json:"dataBits,omitempty"`
	Parity   string `json:"parity,omitempty"`
	StopBits int    `json:"stopBits,omitempty"`
}
