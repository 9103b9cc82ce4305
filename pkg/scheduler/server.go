package scheduler

import (
	"context"
	"encoding/json"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"net/http"
	"strconv"
	"tagscan/pkg/alarm"
	"tagscan/pkg/apis"
	"tagscan/pkg/apis/response"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/scaling"
	v1 "tagscan/pkg/v1"
)

func InstallHandler(group *gin.RouterGroup, s *Scheduler) {
	group.GET("/tags", listTags(s))
	group.GET("/tags/:id", getTagById(s))
	group.PUT("/tags/:id/enable", switchTag(s, true))
	group.PUT("/tags/:id/disable", switchTag(s, false))
	group.PUT("/tags/:id/value", writeTag(s))
	group.GET("/alarms", listAlarms(s))
	group.GET("/stats", getStats(s))
}

// TagView is a tag with its live state and formatted value.
type TagView struct {
	*runtime.Tag
	DisplayValue string      `json:"displayValue"`
	AlarmState   alarm.State `json:"alarmState"`
}

func (s *Scheduler) view(t *runtime.Tag) *TagView {
	return &TagView{
		Tag:          t,
		DisplayValue: scaling.Display(t.CurrentValue, t.DecimalPlaces),
		AlarmState:   s.alarms.State(t.ID).State,
	}
}

func listTags(s *Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		filter := runtime.TagFilter{}
		if v := query.Get(apis.Filter); len(v) > 0 {
			if err := json.Unmarshal([]byte(v), &filter); err != nil {
				klog.V(2).InfoS("Failed to parse tag filter", "err", err)
				c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
				return
			}
		}
		tags := s.Tags(&filter)
		views := make([]*TagView, 0, len(tags))
		for _, t := range tags {
			views = append(views, s.view(t))
		}
		c.JSON(http.StatusOK, &runtime.ResponseModel{Tags: views})
	}
}

func getTagById(s *Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		t, err := s.Tag(id)
		if err != nil {
			c.JSON(statusOf(err), response.NewMultiError(responseErrorOf(id, err)))
			return
		}
		c.Header(apis.ETag, t.GetVersion())
		c.JSON(http.StatusOK, s.view(t))
	}
}

func switchTag(s *Scheduler, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var err error
		if enabled {
			err = s.Enable(id)
		} else {
			err = s.Disable(id)
		}
		if err != nil {
			c.JSON(statusOf(err), response.NewMultiError(responseErrorOf(id, err)))
			return
		}
		t, err := s.Tag(id)
		if err != nil {
			c.JSON(statusOf(err), response.NewMultiError(responseErrorOf(id, err)))
			return
		}
		c.JSON(http.StatusOK, s.view(t))
	}
}

func writeTag(s *Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var action v1.WriteAction
		if err := c.ShouldBindJSON(&action); err != nil {
			klog.V(2).InfoS("Failed to parse write action", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		if action.Value == nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestBody))
			return
		}
		if err := s.Write(c.Request.Context(), id, action.Value); err != nil {
			klog.V(2).InfoS("Failed to write tag", "tagId", id, "err", err)
			c.JSON(statusOf(err), response.NewMultiError(responseErrorOf(id, err)))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listAlarms(s *Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, &runtime.ResponseModel{Alarms: s.Alarms()})
	}
}

func getStats(s *Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, _ := strconv.ParseBool(c.Query(apis.Detail))
		c.JSON(http.StatusOK, s.Stats(detail))
	}
}

func statusOf(err error) int {
	switch {
	case runtime.IsUnknownTag(err):
		return http.StatusNotFound
	case errors.Is(err, constant.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidValue):
		return http.StatusBadRequest
	case runtime.IsConfigurationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case runtime.IsDeviceCommunicationError(err), errors.Is(err, constant.ErrDeviceNotFound):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func responseErrorOf(tagID string, err error) error {
	switch {
	case runtime.IsUnknownTag(err):
		return response.ErrResourceNotFound("Tag " + tagID)
	case errors.Is(err, constant.ErrAccessDenied):
		return response.ErrAccessDenied(tagID, err)
	case errors.Is(err, ErrInvalidValue):
		return response.ErrInvalidValue(err)
	case runtime.IsConfigurationError(err):
		return response.ErrInvalidConfiguration(err)
	case runtime.IsDeviceCommunicationError(err), errors.Is(err, constant.ErrDeviceNotFound):
		return response.ErrDeviceCommunication(err)
	}
	return err
}
