package web

import (
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"k8s.io/klog/v2"
	"net/http"
	"tagscan/cmd/tagscan/config"
	"tagscan/pkg/apis/response"
	"tagscan/pkg/loader"
	"tagscan/pkg/runtime"
)

func InstallHandler(group *gin.RouterGroup, c *config.Config) {
	group.GET("/system", getSystem(c))
	group.POST("/reload", reload(c))
}

type SystemModel struct {
	Cpus  interface{} `json:"cpus,omitempty"`
	Mem   interface{} `json:"mem,omitempty"`
	Disks interface{} `json:"disk,omitempty"`
	Scan  interface{} `json:"scan"`
}

type UsageInfo struct {
	Total       string `json:"total"`
	Used        string `json:"used"`
	UsedPercent string `json:"usedPercent"`
}

type ReloadModel struct {
	Version  string                      `json:"version"`
	Tags     int                         `json:"tags"`
	Rejected map[string]string           `json:"rejected,omitempty"`
	Warnings []runtime.ValidationWarning `json:"warnings,omitempty"`
}

func getSystem(c *config.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		model := SystemModel{Scan: c.Scheduler.Stats(false)}
		if percents, err := cpu.Percent(0, true); err == nil {
			cpus := make([]string, 0, len(percents))
			for _, p := range percents {
				cpus = append(cpus, fmt.Sprintf("%.2f", p))
			}
			model.Cpus = cpus
		} else {
			klog.V(3).InfoS("Failed to get cpu usage", "err", err)
		}
		if vm, err := mem.VirtualMemory(); err == nil {
			model.Mem = UsageInfo{
				Total:       fmt.Sprintf("%d", vm.Total),
				Used:        fmt.Sprintf("%d", vm.Used),
				UsedPercent: fmt.Sprintf("%.2f", vm.UsedPercent),
			}
		} else {
			klog.V(3).InfoS("Failed to get memory usage", "err", err)
		}
		if du, err := disk.Usage("/"); err == nil {
			model.Disks = UsageInfo{
				Total:       fmt.Sprintf("%d", du.Total),
				Used:        fmt.Sprintf("%d", du.Used),
				UsedPercent: fmt.Sprintf("%.2f", du.UsedPercent),
			}
		} else {
			klog.V(3).InfoS("Failed to get disk usage", "err", err)
		}
		ctx.JSON(http.StatusOK, model)
	}
}

func reload(c *config.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res, err := c.Reload()
		if err != nil {
			klog.V(2).InfoS("Failed to reload tag set", "file", c.TagsFile, "err", err)
			if errors.Is(err, config.ErrNoTagsFile) {
				ctx.JSON(http.StatusConflict, response.NewMultiError(response.ErrReloadUnavailable))
				return
			}
			ctx.JSON(http.StatusUnprocessableEntity, response.NewMultiError(response.ErrInvalidConfiguration(err)))
			return
		}
		ctx.JSON(http.StatusOK, reloadModel(res))
	}
}

func reloadModel(res *loader.Result) ReloadModel {
	m := ReloadModel{Version: res.Version, Tags: len(res.Tags), Warnings: res.Warnings}
	if len(res.Rejected) > 0 {
		m.Rejected = make(map[string]string, len(res.Rejected))
		for id, err := range res.Rejected {
			m.Rejected[id] = err.Error()
		}
	}
	return m
}
