package actor

import (
	"sync"
)

// TestMQTTRecorder keeps the last payload published to every topic by the
// dummy MQTT actor.
type TestMQTTRecorder struct {
	mu       sync.Mutex
	messages map[string]string
	count    int
}

func NewTestMQTTRecorder() *TestMQTTRecorder {
	return &TestMQTTRecorder{
		messages: make(map[string]string),
	}
}

func (r *TestMQTTRecorder) record(topic, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[topic] = payload
	r.count++
}

func (r *TestMQTTRecorder) Payload(topic string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload, ok := r.messages[topic]
	return payload, ok
}

func (r *TestMQTTRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
