package mqtt

import (
	"path"
	"sync"
)

// Message is a published message recorded by FakeClient.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient records publishes and lets tests deliver inbound messages.
type FakeClient struct {
	mu        sync.Mutex
	published []Message
	subs      map[string]Handler
	connected bool
	closed    bool

	// PublishError, if set, is returned by Publish.
	PublishError error
	// OnPublish, if set, is called after each recorded publish, outside the lock.
	OnPublish func(Message)
}

// NewFakeClient returns a connected fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{subs: make(map[string]Handler), connected: true}
}

func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	if f.PublishError != nil {
		err := f.PublishError
		f.mu.Unlock()
		return err
	}
	m := Message{Topic: topic, QoS: qos, Retained: retained, Payload: append([]byte(nil), payload...)}
	f.published = append(f.published, m)
	hook := f.OnPublish
	f.mu.Unlock()

	if hook != nil {
		hook(m)
	}
	return nil
}

func (f *FakeClient) Subscribe(topic string, _ byte, handler Handler) error {
	f.mu.Lock()
	f.subs[topic] = handler
	f.mu.Unlock()
	return nil
}

// Deliver invokes every handler whose filter matches topic. Single-level
// wildcards ("+") are matched; "#" is not supported.
func (f *FakeClient) Deliver(topic string, payload []byte) int {
	f.mu.Lock()
	var hs []Handler
	for filter, h := range f.subs {
		if ok, _ := path.Match(filterPattern(filter), topic); ok {
			hs = append(hs, h)
		}
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(topic, payload)
	}
	return len(hs)
}

func filterPattern(filter string) string {
	out := []byte(filter)
	for i := range out {
		if out[i] == '+' {
			out[i] = '*'
		}
	}
	return string(out)
}

// Published returns a copy of the recorded messages.
func (f *FakeClient) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.published...)
}

// PublishedTo returns messages recorded for topic.
func (f *FakeClient) PublishedTo(topic string) []Message {
	var out []Message
	for _, m := range f.Published() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// SetConnected controls IsConnected.
func (f *FakeClient) SetConnected(ok bool) {
	f.mu.Lock()
	f.connected = ok
	f.mu.Unlock()
}

func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.connected = false
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded messages and errors.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	f.published = nil
	f.PublishError = nil
	f.mu.Unlock()
}
