package runtime

import (
	"fmt"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"regexp"
	"tagscan/pkg/runtime/constant"
)

type Severity int8

const (
	SeverityError Severity = iota
	SeverityWarning
)

// accessRule constrains the data access a tag type may declare.
type accessRule struct {
	TagType  constant.TagType
	Allowed  []constant.DataAccess
	Severity Severity
	Message  string
}

var accessRules = []accessRule{
	{TagType: constant.Calculated, Allowed: []constant.DataAccess{constant.ReadOnly}, Severity: SeverityError, Message: "calculated tags must be read only"},
	{TagType: constant.Input, Allowed: []constant.DataAccess{constant.ReadOnly}, Severity: SeverityWarning, Message: "input tags should be read only"},
	{TagType: constant.Output, Allowed: []constant.DataAccess{constant.ReadOnly, constant.ReadWrite}, Severity: SeverityError, Message: "output tags cannot be write only"},
}

func (r accessRule) violatedBy(t *Tag) bool {
	if r.TagType != t.TagType {
		return false
	}
	for _, a := range r.Allowed {
		if a == t.DataAccess {
			return false
		}
	}
	return true
}

var tagNameRegexp = regexp.MustCompile(`^[A-Za-z0-9_.:\-]{1,128}$`)

func ValidateTagName(name string) error {
	if !tagNameRegexp.MatchString(name) {
		return fmt.Errorf("must match %s", tagNameRegexp.String())
	}
	return nil
}

// Validate checks the tag configuration. Errors make the tag unusable, warnings are informational.
func (t *Tag) Validate() (field.ErrorList, []ValidationWarning) {
	var warnings []ValidationWarning
	allErrs := ValidateObjectMeta(t.Name, ValidateTagName)

	for _, rule := range accessRules {
		if !rule.violatedBy(t) {
			continue
		}
		switch rule.Severity {
		case SeverityError:
			allErrs = append(allErrs, field.Invalid(field.NewPath("dataAccess"), t.DataAccess.String(), rule.Message))
		case SeverityWarning:
			warnings = append(warnings, ValidationWarning{TagID: t.ID, Field: "dataAccess", Message: rule.Message})
		}
	}

	if t.ScanRate <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("scanRate"), t.ScanRate, "must be greater than 0"))
	}
	if t.Deadband < 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("deadband"), t.Deadband, "must be greater than or equal to 0"))
	}
	if t.DecimalPlaces < 0 || t.DecimalPlaces > 15 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("decimalPlaces"), t.DecimalPlaces, "must be between 0 and 15"))
	}

	if t.TagType == constant.Input || t.TagType == constant.Output {
		if len(t.DeviceID) == 0 {
			allErrs = append(allErrs, field.Required(field.NewPath("deviceId"), "device tags must be bound to a device"))
		}
		if len(t.Address) == 0 {
			allErrs = append(allErrs, field.Required(field.NewPath("address"), "device tags must have an address"))
		}
	}

	allErrs = append(allErrs, t.validateScaling()...)
	if t.RawMin != nil && !t.DataType.IsNumeric() {
		warnings = append(warnings, ValidationWarning{TagID: t.ID, Field: "rawMin", Message: fmt.Sprintf("scaling is ignored for %s tags", t.DataType)})
	}

	allErrs = append(allErrs, t.validateAlarm()...)
	if t.AlarmEnabled && !t.DataType.IsNumeric() {
		warnings = append(warnings, ValidationWarning{TagID: t.ID, Field: "alarmEnabled", Message: fmt.Sprintf("alarms are not evaluated for %s tags", t.DataType)})
	}
	return allErrs, warnings
}

func (t *Tag) validateScaling() field.ErrorList {
	var allErrs field.ErrorList
	rawSet := t.RawMin != nil || t.RawMax != nil
	scaledSet := t.ScaledMin != nil || t.ScaledMax != nil
	if !rawSet && !scaledSet {
		return nil
	}
	if t.RawMin == nil || t.RawMax == nil {
		allErrs = append(allErrs, field.Required(field.NewPath("rawMin"), "rawMin and rawMax must be set together"))
	}
	if t.ScaledMin == nil || t.ScaledMax == nil {
		allErrs = append(allErrs, field.Required(field.NewPath("scaledMin"), "scaledMin and scaledMax must be set when scaling is configured"))
	}
	if t.RawMin != nil && t.RawMax != nil && *t.RawMin == *t.RawMax {
		allErrs = append(allErrs, field.Invalid(field.NewPath("rawMax"), *t.RawMax, "must differ from rawMin"))
	}
	return allErrs
}

func (t *Tag) validateAlarm() field.ErrorList {
	var allErrs field.ErrorList
	if !t.AlarmEnabled {
		return nil
	}
	if t.HighAlarmLimit == nil && t.LowAlarmLimit == nil {
		allErrs = append(allErrs, field.Required(field.NewPath("highAlarmLimit"), "at least one alarm limit is required when alarms are enabled"))
	}
	if t.HighAlarmLimit != nil && t.LowAlarmLimit != nil && *t.LowAlarmLimit >= *t.HighAlarmLimit {
		allErrs = append(allErrs, field.Invalid(field.NewPath("lowAlarmLimit"), *t.LowAlarmLimit, "must be lower than highAlarmLimit"))
	}
	return allErrs
}

type ValidateNameFunc func(name string) error

func ValidateObjectMeta(name string, nameFn ValidateNameFunc) field.ErrorList {
	var allErrs field.ErrorList
	if len(name) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("name"), ""))
	} else if err := nameFn(name); err != nil {
		allErrs = append(allErrs, field.Invalid(field.NewPath("name"), name, err.Error()))
	}
	return allErrs
}

// ToConfigurationError folds a validation error list into the error returned to loaders.
func ToConfigurationError(tagID string, errs field.ErrorList) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{TagID: tagID, Reason: errs.ToAggregate().Error()}
}
