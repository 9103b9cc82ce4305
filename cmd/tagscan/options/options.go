package options

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"tagscan/cmd/tagscan/config"
	"tagscan/pkg/alarm"
	"tagscan/pkg/event"
	"tagscan/pkg/generic"
	baseoptions "tagscan/pkg/generic/options"
	"tagscan/pkg/scheduler"
	"tagscan/pkg/state"
	"tagscan/pkg/utils/uuidutil"
	"time"
)

type Options struct {
	Port          string        `json:"port"`
	Wait          time.Duration `json:"graceful-timeout"`
	TagsFile      string        `json:"tags"`
	ReadTimeout   time.Duration `json:"read-timeout"`
	MaxInflight   int           `json:"max-inflight"`
	EventBuffer   int           `json:"event-buffer"`
	LogEvents     bool          `json:"log-events"`
	StatsInterval time.Duration `json:"stats-interval"`
	CertFile      string        `json:"cert-file"`
	KeyFile       string        `json:"key-file"`
	Mqtt          MqttOptions   `json:"mqtt"`
	baseoptions.BaseOptions
}

type MqttOptions struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client-id"`
	TopicPrefix string `json:"topic-prefix"`
}

const (
	_defaultPort          = "32200"
	_defaultWait          = 15 * time.Second
	_defaultEventBuffer   = 1024
	_defaultStatsInterval = time.Minute
	_defaultTopicPrefix   = "tagscan/tags"
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:          _defaultPort,
		Wait:          _defaultWait,
		ReadTimeout:   scheduler.DefaultReadTimeout,
		MaxInflight:   scheduler.DefaultMaxInflight,
		EventBuffer:   _defaultEventBuffer,
		StatsInterval: _defaultStatsInterval,
		Mqtt: MqttOptions{
			TopicPrefix: _defaultTopicPrefix,
		},
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait, "graceful-timeout", o.Wait, "The duration for which the server gracefully wait for scan tasks and connections to finish - e.g. 15s or 1m")
	fs.StringVarP(&o.TagsFile, "tags", "t", o.TagsFile, "Path of the tag set file (YAML or JSON). Send SIGHUP or POST /api/v1/reload to reload it.")
	fs.DurationVar(&o.ReadTimeout, "read-timeout", o.ReadTimeout, "Upper bound of a single device read or write, including the time spent queued")
	fs.IntVar(&o.MaxInflight, "max-inflight", o.MaxInflight, "Maximum number of device reads and writes on the wire across all devices. Requests queued behind a busy device do not count.")
	fs.IntVar(&o.EventBuffer, "event-buffer", o.EventBuffer, "Number of events buffered per sink before new events are dropped")
	fs.BoolVar(&o.LogEvents, "log-events", o.LogEvents, "Log every value update and alarm transition at verbosity 4")
	fs.DurationVar(&o.StatsInterval, "stats-interval", o.StatsInterval, "Interval of the scheduler statistics log line, 0 disables it")
	fs.StringVar(&o.CertFile, "cert-file", o.CertFile, "TLS certificate of the HTTP API")
	fs.StringVar(&o.KeyFile, "key-file", o.KeyFile, "TLS private key of the HTTP API")
	fs.StringVar(&o.Mqtt.Broker, "mqtt-broker", o.Mqtt.Broker, "MQTT broker events are published to, e.g. tcp://127.0.0.1:1883. Empty disables MQTT")
	fs.StringVar(&o.Mqtt.ClientID, "mqtt-client-id", o.Mqtt.ClientID, "MQTT client id, generated when empty")
	fs.StringVar(&o.Mqtt.TopicPrefix, "mqtt-topic-prefix", o.Mqtt.TopicPrefix, "Prefix of the topics events are published to")
}

// ResolvePaths makes the file paths of an option file relative to the file's directory.
func (o *Options) ResolvePaths(dir string) {
	o.TagsFile = baseoptions.ResolvePath(dir, o.TagsFile)
	o.CertFile = baseoptions.ResolvePath(dir, o.CertFile)
	o.KeyFile = baseoptions.ResolvePath(dir, o.KeyFile)
}

func (o *Options) Config() (*config.Config, error) {
	c := &config.Config{
		TagsFile: o.TagsFile,
		CertFile: o.CertFile,
		KeyFile:  o.KeyFile,
	}

	sinks := event.MultiSink{}
	if len(o.Mqtt.Broker) > 0 {
		clientID := o.Mqtt.ClientID
		if len(clientID) == 0 {
			clientID = "tagscan-" + uuidutil.ShortUUID()
		}
		client, err := event.ConnectMQTT(o.Mqtt.Broker, clientID)
		if err != nil {
			return nil, errors.Wrapf(err, "connect mqtt broker %s", o.Mqtt.Broker)
		}
		c.MqttClient = client
		c.MqttSink = event.NewMQTTSink(client, o.Mqtt.TopicPrefix, o.EventBuffer)
		sinks = append(sinks, c.MqttSink)
	}
	if o.LogEvents {
		sinks = append(sinks, event.LogSink{})
	}

	opts := []scheduler.Option{
		scheduler.WithReadTimeout(o.ReadTimeout),
		scheduler.WithMaxInflight(o.MaxInflight),
		scheduler.WithSink(sinks),
	}
	for protocol, factory := range generic.DevicePortFactories {
		opts = append(opts, scheduler.WithPortFactory(protocol, factory))
	}
	c.Scheduler = scheduler.NewScheduler(state.NewStore(), alarm.NewEvaluator(), opts...)

	if len(c.TagsFile) > 0 {
		if _, err := c.Reload(); err != nil {
			return nil, errors.Wrapf(err, "load tag set %s", c.TagsFile)
		}
	}
	return c, nil
}
