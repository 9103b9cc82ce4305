package v1

// opcua
type OpcUaSettings struct {
	Address *OpcAddress `json:"address" binding:"required"`
}

type OpcAddress struct {
	Location string            `json:"location"` // endpoint, e.g. opc.tcp://host
	Option   *OpcAddressOption `json:"option,omitempty"`
}

type OpcAddressOption struct {
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// simulator
type SimulatorSettings struct {
	Seed int64 `json:"seed,omitempty"`
	// FailEvery makes every n-th read fail, 0 disables failures.
	FailEvery int `json:"failEvery,omitempty"`
}
