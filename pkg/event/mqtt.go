package event

import (
	"encoding/json"
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
	"sync"
	"time"
)

const (
	mqttTimeout   = 3 * time.Second
	mqttQos       = 1
	timeFormatUTC = "2006-01-02T15:04:05.000Z"
)

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type message struct {
	topic   string
	payload []byte
}

type valuePayload struct {
	TagID     string      `json:"tagId"`
	Value     interface{} `json:"value"`
	Quality   string      `json:"quality"`
	Timestamp string      `json:"timestamp"`
}

type alarmPayload struct {
	TagID     string      `json:"tagId"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Value     interface{} `json:"value"`
	Timestamp string      `json:"timestamp"`
}

// MQTTSink publishes events to "<prefix>/<tagId>/value" and "<prefix>/<tagId>/alarm".
// Publishing happens on an internal goroutine; the pipeline only enqueues.
type MQTTSink struct {
	client  Publisher
	prefix  string
	queue   chan message
	dropped *atomic.Uint64
	stopCh  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewMQTTSink(client Publisher, prefix string, buffer int) *MQTTSink {
	if buffer <= 0 {
		buffer = 1
	}
	s := &MQTTSink{
		client:  client,
		prefix:  prefix,
		queue:   make(chan message, buffer),
		dropped: atomic.NewUint64(0),
		stopCh:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// ConnectMQTT dials the broker the way the sink expects its client to be configured.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(mqttTimeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *MQTTSink) PublishValue(update ValueUpdate) {
	data, err := json.Marshal(&valuePayload{
		TagID:     update.TagID,
		Value:     update.Value.Interface(),
		Quality:   update.Quality.String(),
		Timestamp: update.Timestamp.UTC().Format(timeFormatUTC),
	})
	if err != nil {
		klog.V(2).InfoS("Failed to marshal value update", "tagId", update.TagID, "err", err)
		return
	}
	s.enqueue(message{topic: fmt.Sprintf("%s/%s/value", s.prefix, update.TagID), payload: data})
}

func (s *MQTTSink) PublishAlarm(transition AlarmTransition) {
	data, err := json.Marshal(&alarmPayload{
		TagID:     transition.TagID,
		From:      transition.From.String(),
		To:        transition.To.String(),
		Value:     transition.Value.Interface(),
		Timestamp: transition.Timestamp.UTC().Format(timeFormatUTC),
	})
	if err != nil {
		klog.V(2).InfoS("Failed to marshal alarm transition", "tagId", transition.TagID, "err", err)
		return
	}
	s.enqueue(message{topic: fmt.Sprintf("%s/%s/alarm", s.prefix, transition.TagID), payload: data})
}

func (s *MQTTSink) enqueue(m message) {
	select {
	case <-s.stopCh:
		return
	default:
	}
	select {
	case s.queue <- m:
	default:
		s.dropped.Inc()
		klog.V(3).InfoS("Dropped MQTT message", "topic", m.topic)
	}
}

func (s *MQTTSink) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case m := <-s.queue:
			s.publish(m)
		}
	}
}

func (s *MQTTSink) publish(m message) {
	token := s.client.Publish(m.topic, mqttQos, false, m.payload)
	if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
		klog.V(5).InfoS("Succeed to publish MQTT", "topic", m.topic)
	} else {
		klog.V(1).InfoS("Failed to publish MQTT", "topic", m.topic, "err", token.Error())
	}
}

func (s *MQTTSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops the publishing goroutine. Queued messages that were not sent yet are discarded.
func (s *MQTTSink) Close() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
