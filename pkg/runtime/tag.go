package runtime

import (
	"strconv"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/utils/randutil"
	"tagscan/pkg/utils/uuidutil"
	"time"
)

const (
	DefaultScanRate      = 1000
	DefaultDecimalPlaces = 2
)

// Tag is a monitored or controlled point bound to a device address.
type Tag struct {
	Entity
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	TagType     constant.TagType    `json:"tagType"`
	DataAccess  constant.DataAccess `json:"dataAccess"`
	DataType    constant.DataType   `json:"dataType"`

	// live state, owned by the state store and copied in on read
	CurrentValue   Value            `json:"currentValue"`
	PreviousValue  Value            `json:"previousValue"`
	Quality        constant.Quality `json:"quality"`
	ValueTimestamp time.Time        `json:"valueTimestamp"`

	DeviceID string `json:"deviceId,omitempty"`
	Address  string `json:"address,omitempty"`

	EngineeringUnit string   `json:"engineeringUnit,omitempty"`
	RawMin          *float64 `json:"rawMin,omitempty"`
	RawMax          *float64 `json:"rawMax,omitempty"`
	ScaledMin       *float64 `json:"scaledMin,omitempty"`
	ScaledMax       *float64 `json:"scaledMax,omitempty"`
	DecimalPlaces   int      `json:"decimalPlaces"`

	ScanRate  int     `json:"scanRate"` // milliseconds
	Deadband  float64 `json:"deadband"`
	IsEnabled bool    `json:"isEnabled"`

	AlarmEnabled   bool     `json:"alarmEnabled"`
	HighAlarmLimit *float64 `json:"highAlarmLimit,omitempty"`
	LowAlarmLimit  *float64 `json:"lowAlarmLimit,omitempty"`
}

// NewTag returns a tag with a fresh identity and the configuration defaults.
func NewTag(name string) *Tag {
	now := time.Now()
	return &Tag{
		Entity: Entity{
			ID:        uuidutil.UUID(),
			Version:   strconv.FormatUint(randutil.Uint64n(), 10),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:          name,
		DataAccess:    constant.ReadWrite,
		DataType:      constant.Double,
		Quality:       constant.Bad,
		DecimalPlaces: DefaultDecimalPlaces,
		ScanRate:      DefaultScanRate,
		IsEnabled:     true,
	}
}

func (t *Tag) GetName() string     { return t.Name }
func (t *Tag) SetName(name string) { t.Name = name }

func (t *Tag) ScanInterval() time.Duration {
	return time.Duration(t.ScanRate) * time.Millisecond
}

// HasScaling reports whether the linear raw to engineering transform is configured.
func (t *Tag) HasScaling() bool {
	return t.RawMin != nil && t.RawMax != nil && t.ScaledMin != nil && t.ScaledMax != nil
}

// IsScannable reports whether the scheduler polls this tag.
// Calculated and virtual tags have no device to read from.
func (t *Tag) IsScannable() bool {
	if !t.IsEnabled || t.IsArchived() {
		return false
	}
	if t.TagType != constant.Input && t.TagType != constant.Output {
		return false
	}
	return t.DataAccess.CanRead() && len(t.DeviceID) > 0 && t.ScanRate > 0
}

// AlarmsApply reports whether alarm evaluation runs for the tag.
func (t *Tag) AlarmsApply() bool {
	return t.AlarmEnabled && t.DataAccess.CanRead() && t.DataType.IsNumeric() &&
		(t.HighAlarmLimit != nil || t.LowAlarmLimit != nil)
}

func (t *Tag) DeepCopy() *Tag {
	if t == nil {
		return nil
	}
	out := *t
	out.RawMin = copyFloat(t.RawMin)
	out.RawMax = copyFloat(t.RawMax)
	out.ScaledMin = copyFloat(t.ScaledMin)
	out.ScaledMax = copyFloat(t.ScaledMax)
	out.HighAlarmLimit = copyFloat(t.HighAlarmLimit)
	out.LowAlarmLimit = copyFloat(t.LowAlarmLimit)
	if t.ArchivedAt != nil {
		at := *t.ArchivedAt
		out.ArchivedAt = &at
	}
	return &out
}

// SameScanConfig reports whether o can keep running on the scan task started for t.
func (t *Tag) SameScanConfig(o *Tag) bool {
	return t.DeviceID == o.DeviceID && t.Address == o.Address && t.DataType == o.DataType &&
		t.ScanRate == o.ScanRate && t.IsScannable() == o.IsScannable()
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
