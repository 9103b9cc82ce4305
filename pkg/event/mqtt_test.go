package event

import (
	"encoding/json"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"tagscan/pkg/alarm"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"testing"
	"time"
)

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	block    chan struct{}
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, payload: payload.([]byte)})
	return &doneToken{}
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.messages...)
}

func TestMQTTSinkPublishesTopics(t *testing.T) {
	pub := &fakePublisher{}
	s := NewMQTTSink(pub, "plant/tags", 8)
	defer s.Close()

	at := time.Date(2024, 3, 1, 12, 0, 0, 500000000, time.FixedZone("CET", 3600))
	s.PublishValue(ValueUpdate{TagID: "t1", Value: runtime.DoubleValue(5.2), Quality: constant.Good, Timestamp: at})
	s.PublishAlarm(AlarmTransition{TagID: "t1", From: alarm.Normal, To: alarm.HighAlarm, Value: runtime.DoubleValue(85), Timestamp: at})

	require.Eventually(t, func() bool { return len(pub.sent()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := pub.sent()
	assert.Equal(t, "plant/tags/t1/value", msgs[0].topic)
	assert.Equal(t, "plant/tags/t1/alarm", msgs[1].topic)

	var value map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[0].payload, &value))
	assert.Equal(t, "t1", value["tagId"])
	assert.Equal(t, 5.2, value["value"])
	assert.Equal(t, "good", value["quality"])
	assert.Equal(t, "2024-03-01T11:00:00.500Z", value["timestamp"])

	var tr map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[1].payload, &tr))
	assert.Equal(t, "normal", tr["from"])
	assert.Equal(t, "highAlarm", tr["to"])
}

func TestMQTTSinkDropsWhenBacklogged(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	s := NewMQTTSink(pub, "p", 1)

	for i := 0; i < 10; i++ {
		s.PublishValue(ValueUpdate{TagID: "t", Value: runtime.IntValue(constant.Int16, int64(i))})
	}
	// one message is held by the blocked publisher, one is queued
	assert.GreaterOrEqual(t, s.Dropped(), uint64(8))

	close(pub.block)
	s.Close()
	s.PublishValue(ValueUpdate{TagID: "t"})
	assert.LessOrEqual(t, len(pub.sent()), 2)
}
