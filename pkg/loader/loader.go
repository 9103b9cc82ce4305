// Package loader reads a versioned tag set file and turns it into validated runtime tags.
package loader

import (
	"fmt"
	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/klog/v2"
	"os"
	"sigs.k8s.io/yaml"
	"sort"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/utils/binutil"
	v1 "tagscan/pkg/v1"
	"time"
)

var SupportedProtocols = sets.NewString(v1.ProtocolModbusTcp, v1.ProtocolModbusRtu, v1.ProtocolOpcUa, v1.ProtocolSimulator)

// Result is a loaded tag set. Tags with hard errors are left out and reported in Rejected.
type Result struct {
	Version  string
	Devices  []*v1.Device
	Tags     []*runtime.Tag
	Rejected map[string]error
	Warnings []runtime.ValidationWarning
}

// RejectedError aggregates the reasons tags were rejected, nil when every tag loaded.
func (r *Result) RejectedError() error {
	ids := make([]string, 0, len(r.Rejected))
	for id := range r.Rejected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, r.Rejected[id])
	}
	return utilerrors.NewAggregate(errs)
}

// Load reads and builds the tag set file at path.
func Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read tag set %s", path)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse tag set %s", path)
	}
	return Build(set, time.Now())
}

// Parse decodes a YAML or JSON tag set. Unknown fields are rejected.
func Parse(data []byte) (*v1.TagSet, error) {
	set := &v1.TagSet{}
	if err := yaml.UnmarshalStrict(data, set); err != nil {
		return nil, err
	}
	return set, nil
}

// Build validates the set. Device errors and a missing version fail the whole set,
// tag errors only reject the offending tag.
func Build(set *v1.TagSet, now time.Time) (*Result, error) {
	if set == nil {
		return nil, fmt.Errorf("empty tag set")
	}
	var allErrs field.ErrorList
	if len(set.Version) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("version"), ""))
	}

	devices := make(map[string]*v1.Device, len(set.Devices))
	devicesPath := field.NewPath("devices")
	for i, d := range set.Devices {
		path := devicesPath.Index(i)
		if d == nil {
			allErrs = append(allErrs, field.Required(path, ""))
			continue
		}
		if _, dup := devices[d.ID]; dup {
			allErrs = append(allErrs, field.Duplicate(path.Child("id"), d.ID))
			continue
		}
		if errs := validateDevice(d, path); len(errs) > 0 {
			allErrs = append(allErrs, errs...)
			continue
		}
		devices[d.ID] = d
	}
	if len(allErrs) > 0 {
		return nil, allErrs.ToAggregate()
	}

	result := &Result{
		Version:  set.Version,
		Devices:  make([]*v1.Device, 0, len(devices)),
		Tags:     make([]*runtime.Tag, 0, len(set.Tags)),
		Rejected: make(map[string]error),
	}
	for _, d := range set.Devices {
		result.Devices = append(result.Devices, d)
	}

	ids := sets.NewString()
	names := sets.NewString()
	for i, in := range set.Tags {
		if in == nil {
			continue
		}
		t, errs := convertTag(in, now)
		key := t.ID
		if len(in.ID) == 0 {
			key = fmt.Sprintf("tags[%d]", i)
		}
		if ids.Has(t.ID) {
			errs = append(errs, field.Duplicate(field.NewPath("id"), t.ID))
		}
		if names.Has(t.Name) {
			errs = append(errs, field.Duplicate(field.NewPath("name"), t.Name))
		}
		if len(t.DeviceID) > 0 {
			if _, ok := devices[t.DeviceID]; !ok {
				errs = append(errs, field.NotFound(field.NewPath("deviceId"), t.DeviceID))
			}
		}

		verrs, warnings := t.Validate()
		errs = append(errs, verrs...)
		result.Warnings = append(result.Warnings, warnings...)
		if len(errs) > 0 {
			result.Rejected[key] = runtime.ToConfigurationError(key, errs)
			klog.V(2).InfoS("Rejected tag", "tagId", key, "name", t.Name, "err", result.Rejected[key])
			continue
		}
		ids.Insert(t.ID)
		names.Insert(t.Name)
		result.Tags = append(result.Tags, t)
	}
	for _, w := range result.Warnings {
		klog.V(3).InfoS("Tag configuration warning", "tagId", w.TagID, "field", w.Field, "message", w.Message)
	}
	return result, nil
}

func validateDevice(d *v1.Device, path *field.Path) field.ErrorList {
	var allErrs field.ErrorList
	if len(d.ID) == 0 {
		allErrs = append(allErrs, field.Required(path.Child("id"), ""))
	}
	if !SupportedProtocols.Has(d.Protocol) {
		allErrs = append(allErrs, field.NotSupported(path.Child("protocol"), d.Protocol, SupportedProtocols.List()))
		return allErrs
	}
	if d.Concurrency < 0 {
		allErrs = append(allErrs, field.Invalid(path.Child("concurrency"), d.Concurrency, "must be greater than or equal to 0"))
	}
	if d.Timeout < 0 {
		allErrs = append(allErrs, field.Invalid(path.Child("timeout"), d.Timeout, "must be greater than or equal to 0"))
	}

	switch d.Protocol {
	case v1.ProtocolModbusTcp, v1.ProtocolModbusRtu:
		if d.Modbus == nil || d.Modbus.Address == nil || len(d.Modbus.Address.Location) == 0 {
			allErrs = append(allErrs, field.Required(path.Child("modbus", "address", "location"), ""))
			break
		}
		if layout := d.Modbus.MemoryLayout; len(layout) > 0 {
			if _, ok := binutil.StringToLayout[layout]; !ok {
				allErrs = append(allErrs, field.NotSupported(path.Child("modbus", "memoryLayout"), layout, sets.StringKeySet(binutil.StringToLayout).List()))
			}
		}
	case v1.ProtocolOpcUa:
		if d.OpcUa == nil || d.OpcUa.Address == nil || len(d.OpcUa.Address.Location) == 0 {
			allErrs = append(allErrs, field.Required(path.Child("opcUa", "address", "location"), ""))
		}
	}
	return allErrs
}

// convertTag maps the configuration form onto a runtime tag and applies defaults.
func convertTag(in *v1.Tag, now time.Time) (*runtime.Tag, field.ErrorList) {
	var allErrs field.ErrorList
	t := runtime.NewTag(in.Name)
	if len(in.ID) > 0 {
		t.ID = in.ID
	}

	tagType, ok := constant.StringToTagType[in.TagType]
	if !ok {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("tagType"), in.TagType, sets.StringKeySet(constant.StringToTagType).List()))
	}
	t.TagType = tagType

	t.DataAccess = defaultDataAccess(tagType)
	if len(in.DataAccess) > 0 {
		da, ok := constant.StringToDataAccess[in.DataAccess]
		if !ok {
			allErrs = append(allErrs, field.NotSupported(field.NewPath("dataAccess"), in.DataAccess, sets.StringKeySet(constant.StringToDataAccess).List()))
		}
		t.DataAccess = da
	}
	if len(in.DataType) > 0 {
		dt, ok := constant.StringToDataType[in.DataType]
		if !ok {
			allErrs = append(allErrs, field.NotSupported(field.NewPath("dataType"), in.DataType, sets.StringKeySet(constant.StringToDataType).List()))
		}
		t.DataType = dt
	}

	t.Description = in.Description
	t.DeviceID = in.DeviceID
	t.Address = in.Address
	t.EngineeringUnit = in.EngineeringUnit
	t.RawMin, t.RawMax = in.RawMin, in.RawMax
	t.ScaledMin, t.ScaledMax = in.ScaledMin, in.ScaledMax
	t.Deadband = in.Deadband
	t.AlarmEnabled = in.AlarmEnabled
	t.HighAlarmLimit, t.LowAlarmLimit = in.HighAlarmLimit, in.LowAlarmLimit
	if in.DecimalPlaces != nil {
		t.DecimalPlaces = *in.DecimalPlaces
	}
	if in.ScanRate != nil {
		t.ScanRate = *in.ScanRate
	}
	if in.IsEnabled != nil {
		t.IsEnabled = *in.IsEnabled
	}

	if in.InitialValue != nil {
		v, err := runtime.ValueOf(t.DataType, in.InitialValue)
		if err != nil {
			allErrs = append(allErrs, field.Invalid(field.NewPath("initialValue"), in.InitialValue, err.Error()))
		} else {
			t.CurrentValue = v
		}
	}

	if in.CreatedAt != nil {
		t.CreatedAt = *in.CreatedAt
	}
	t.Stamp(now)
	if in.ArchivedAt != nil {
		t.Archive(*in.ArchivedAt)
	}
	return t, allErrs
}

func defaultDataAccess(tt constant.TagType) constant.DataAccess {
	switch tt {
	case constant.Output, constant.Virtual:
		return constant.ReadWrite
	}
	return constant.ReadOnly
}
