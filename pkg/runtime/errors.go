package runtime

import (
	"errors"
	"fmt"
)

// ConfigurationError marks a tag whose scaling or alarm configuration cannot be used.
// The tag is rejected at load time or read as Bad quality at scan time.
type ConfigurationError struct {
	TagID  string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if len(e.Field) == 0 {
		return fmt.Sprintf("tag %s: invalid configuration: %s", e.TagID, e.Reason)
	}
	return fmt.Sprintf("tag %s: invalid configuration %s: %s", e.TagID, e.Field, e.Reason)
}

type UnknownTagError struct {
	TagID string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown tag %s", e.TagID)
}

// DeviceCommunicationError is transient: the tag goes Bad and is retried on the next tick.
type DeviceCommunicationError struct {
	DeviceID string
	Address  string
	Err      error
}

func (e *DeviceCommunicationError) Error() string {
	return fmt.Sprintf("device %s address %s: %v", e.DeviceID, e.Address, e.Err)
}

func (e *DeviceCommunicationError) Unwrap() error {
	return e.Err
}

// ValidationWarning is a soft business rule violation. It is reported, never enforced.
type ValidationWarning struct {
	TagID   string `json:"tagId"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w ValidationWarning) Error() string {
	return fmt.Sprintf("tag %s: %s: %s", w.TagID, w.Field, w.Message)
}

func IsUnknownTag(err error) bool {
	var target *UnknownTagError
	return errors.As(err, &target)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsDeviceCommunicationError(err error) bool {
	var target *DeviceCommunicationError
	return errors.As(err, &target)
}
