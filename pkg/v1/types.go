package v1

import (
	"time"
)

// TagSet is the versioned tag configuration file consumed by the scanner.
type TagSet struct {
	Version string    `json:"version"`
	Devices []*Device `json:"devices"`
	Tags    []*Tag    `json:"tags"`
}

type Device struct {
	ID          string             `json:"id"`
	Name        string             `json:"name,omitempty"`
	Protocol    string             `json:"protocol"`
	Concurrency int                `json:"concurrency,omitempty"`
	Timeout     int                `json:"timeout,omitempty"` // milliseconds
	Modbus      *ModbusSettings    `json:"modbus,omitempty"`
	OpcUa       *OpcUaSettings     `json:"opcUa,omitempty"`
	Simulator   *SimulatorSettings `json:"simulator,omitempty"`
}

func (d *Device) GetConcurrency() int {
	if d.Concurrency <= 0 {
		return DefaultDeviceConcurrency
	}
	return d.Concurrency
}

func (d *Device) GetTimeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultDeviceTimeout * time.Millisecond
	}
	return time.Duration(d.Timeout) * time.Millisecond
}

// Tag is the configuration form of a tag. Enumerations are strings and optional
// settings are pointers so that omitted fields take their defaults.
type Tag struct {
	ID              string      `json:"id,omitempty"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	TagType         string      `json:"tagType"`
	DataAccess      string      `json:"dataAccess,omitempty"`
	DataType        string      `json:"dataType,omitempty"`
	DeviceID        string      `json:"deviceId,omitempty"`
	Address         string      `json:"address,omitempty"`
	EngineeringUnit string      `json:"engineeringUnit,omitempty"`
	RawMin          *float64    `json:"rawMin,omitempty"`
	RawMax          *float64    `json:"rawMax,omitempty"`
	ScaledMin       *float64    `json:"scaledMin,omitempty"`
	ScaledMax       *float64    `json:"scaledMax,omitempty"`
	DecimalPlaces   *int        `json:"decimalPlaces,omitempty"`
	ScanRate        *int        `json:"scanRate,omitempty"`
	Deadband        float64     `json:"deadband,omitempty"`
	IsEnabled       *bool       `json:"isEnabled,omitempty"`
	AlarmEnabled    bool        `json:"alarmEnabled,omitempty"`
	HighAlarmLimit  *float64    `json:"highAlarmLimit,omitempty"`
	LowAlarmLimit   *float64    `json:"lowAlarmLimit,omitempty"`
	InitialValue    interface{} `json:"initialValue,omitempty"`
	CreatedAt       *time.Time  `json:"createdAt,omitempty"`
	ArchivedAt      *time.Time  `json:"archivedAt,omitempty"`
}
