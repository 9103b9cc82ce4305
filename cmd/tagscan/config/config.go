package config

import (
	"context"
	"errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"k8s.io/klog/v2"
	"sync"
	"tagscan/pkg/event"
	"tagscan/pkg/loader"
	"tagscan/pkg/scheduler"
)

var ErrNoTagsFile = errors.New("no tag set file configured")

type Config struct {
	Scheduler *scheduler.Scheduler
	TagsFile  string
	CertFile  string
	KeyFile   string

	MqttClient mqtt.Client
	MqttSink   *event.MQTTSink

	// reloadMu keeps concurrent reloads from interleaving file reads and applies.
	reloadMu sync.Mutex
}

// Reload reads the tag set file and applies it to the scheduler.
func (c *Config) Reload() (*loader.Result, error) {
	if len(c.TagsFile) == 0 {
		return nil, ErrNoTagsFile
	}
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	res, err := loader.Load(c.TagsFile)
	if err != nil {
		return nil, err
	}
	if err := c.Scheduler.Apply(res.Version, res.Devices, res.Tags); err != nil {
		return nil, err
	}
	if err := res.RejectedError(); err != nil {
		klog.InfoS("Tag set loaded with rejected tags", "version", res.Version, "rejected", len(res.Rejected), "err", err)
	}
	return res, nil
}

// Shutdown stops scanning and releases the event sinks.
func (c *Config) Shutdown(ctx context.Context) error {
	err := c.Scheduler.Stop(ctx)
	if c.MqttSink != nil {
		c.MqttSink.Close()
		klog.V(2).InfoS("MQTT sink closed", "dropped", c.MqttSink.Dropped())
	}
	if c.MqttClient != nil {
		c.MqttClient.Disconnect(250)
	}
	return err
}
