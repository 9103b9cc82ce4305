package scheduler

import (
	"context"
	"github.com/pkg/errors"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/scaling"
)

var ErrInvalidValue = errors.New("invalid value")

// Write sends an engineering value to a tag. Scaled tags are unscaled before they reach
// the device. Virtual tags have no device and are written straight into the state store.
func (s *Scheduler) Write(ctx context.Context, tagID string, value interface{}) error {
	tag, _, ok := s.lookup(tagID)
	if !ok {
		return &runtime.UnknownTagError{TagID: tagID}
	}
	if !tag.DataAccess.CanWrite() || tag.IsArchived() {
		return errors.Wrapf(constant.ErrAccessDenied, "tag %s is %s", tagID, tag.DataAccess)
	}
	if tag.TagType == constant.Calculated {
		return errors.Wrapf(constant.ErrAccessDenied, "calculated tag %s", tagID)
	}

	valueType := tag.DataType
	if tag.HasScaling() && tag.DataType.IsNumeric() {
		valueType = constant.Double
	}
	eng, err := runtime.ValueOf(valueType, value)
	if err != nil {
		return errors.Wrapf(ErrInvalidValue, "tag %s: %v", tagID, err)
	}
	if eng.IsNull() {
		return errors.Wrapf(ErrInvalidValue, "tag %s: null", tagID)
	}

	if tag.TagType == constant.Virtual {
		s.propagate(tag, eng, s.now())
		return nil
	}

	raw, err := scaling.Unscale(eng, tag)
	if err != nil {
		if runtime.IsConfigurationError(err) {
			return err
		}
		return errors.Wrapf(ErrInvalidValue, "tag %s: %v", tagID, err)
	}
	s.mu.RLock()
	q, ok := s.queues[tag.DeviceID]
	s.mu.RUnlock()
	if !ok {
		return errors.Wrapf(constant.ErrDeviceNotFound, "tag %s device %s", tagID, tag.DeviceID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	return q.Write(ctx, tag.Address, raw)
}
