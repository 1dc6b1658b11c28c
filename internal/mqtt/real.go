package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int
	// WillTopic, if set, receives WillPayload (retained) when the
	// connection drops uncleanly.
	WillTopic   string
	WillPayload []byte
}

type subscription struct {
	qos     byte
	handler Handler
}

// RealClient is a paho connection with publish buffering and automatic
// resubscription.
type RealClient struct {
	client paho.Client
	log    *slog.Logger

	mu   sync.Mutex
	buf  *ringBuffer
	subs map[string]subscription
}

// NewRealClient connects to the broker. The connection is retried in the
// background, so a broker that is down at startup is not fatal.
func NewRealClient(opts Options, log *slog.Logger) *RealClient {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	c := &RealClient{
		log:  log.With("component", "mqtt"),
		buf:  newRingBuffer(opts.BufferSize),
		subs: make(map[string]subscription),
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.log.Warn("connection lost", "err", err)
		})
	if opts.WillTopic != "" {
		po.SetBinaryWill(opts.WillTopic, opts.WillPayload, 1, true)
	}

	c.client = paho.NewClient(po)
	c.client.Connect()
	return c
}

// onConnect restores subscriptions and replays buffered messages.
func (c *RealClient) onConnect(pc paho.Client) {
	c.mu.Lock()
	pending := c.buf.drain()
	subs := make(map[string]subscription, len(c.subs))
	for t, s := range c.subs {
		subs[t] = s
	}
	c.mu.Unlock()

	c.log.Info("connected", "replay", len(pending), "subscriptions", len(subs))

	for topic, s := range subs {
		if err := c.subscribe(topic, s); err != nil {
			c.log.Warn("resubscribe failed", "topic", topic, "err", err)
		}
	}
	for _, m := range pending {
		if err := c.publish(m); err != nil {
			c.log.Warn("replay failed", "topic", m.topic, "err", err)
		}
	}
}

func (c *RealClient) publish(m bufferedMsg) error {
	token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

func (c *RealClient) subscribe(topic string, s subscription) error {
	token := c.client.Subscribe(topic, s.qos, func(_ paho.Client, m paho.Message) {
		s.handler(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish sends the message, or buffers it while disconnected.
func (c *RealClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		dropped := c.buf.push(m)
		n := c.buf.len()
		c.mu.Unlock()
		if dropped {
			c.log.Warn("buffer full, dropped oldest message", "buffered", n)
		}
		return nil
	}
	return c.publish(m)
}

// Subscribe records the subscription and applies it if connected.
func (c *RealClient) Subscribe(topic string, qos byte, handler Handler) error {
	s := subscription{qos: qos, handler: handler}
	c.mu.Lock()
	c.subs[topic] = s
	c.mu.Unlock()
	if !c.client.IsConnectionOpen() {
		return nil
	}
	return c.subscribe(topic, s)
}

// IsConnected reports whether the connection is currently open.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Buffered returns the number of messages awaiting replay.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000)
	return nil
}
