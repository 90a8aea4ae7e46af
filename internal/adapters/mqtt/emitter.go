// Package mqtt republishes bridge events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/app/bridge"
	"github.com/dkeye/callbridge/internal/config"
)

var ErrNotConnected = errors.New("mqtt not connected")

// Publisher is the part of paho.Client the emitter needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

type message struct {
	topic   string
	payload []byte
}

// Emitter subscribes to every bridge channel and publishes each event on
// <prefix>/<channel>. Publishing happens on Run's goroutine so bridge
// dispatch never waits on the broker.
type Emitter struct {
	cfg    config.MQTT
	Client paho.Client

	pub   Publisher
	queue chan message
	subs  []*bridge.Subscription

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	dropped   uint64
	connected bool
}

func NewEmitter(cfg config.MQTT) *Emitter {
	return &Emitter{
		cfg:       cfg,
		queue:     make(chan message, 128),
		published: make(map[string]uint64),
	}
}

// Topic builds the topic for one channel.
func Topic(prefix string, ch bridge.Channel) string {
	if prefix == "" {
		return string(ch)
	}
	return fmt.Sprintf("%s/%s", prefix, ch)
}

// Connect establishes the broker connection with auto-reconnect.
func (e *Emitter) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	if e.cfg.Username != "" {
		opts.SetUsername(e.cfg.Username)
		opts.SetPassword(e.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c paho.Client) {
		e.setConnected(true)
		log.Info().Str("module", "mqtt").Str("broker", e.cfg.Broker).Str("client_id", e.cfg.ClientID).Msg("connection established")
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		e.setConnected(false)
		log.Warn().Err(err).Str("module", "mqtt").Str("broker", e.cfg.Broker).Msg("connection lost, will auto-reconnect")
	}

	e.Client = paho.NewClient(opts)
	e.pub = e.Client

	log.Info().Str("module", "mqtt").Str("broker", e.cfg.Broker).Msg("connecting to broker")
	token := e.Client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

// Attach subscribes the emitter to all bridge channels.
func (e *Emitter) Attach(b *bridge.Bridge) error {
	for _, ch := range bridge.Channels {
		s, err := b.Subscribe(ch, e.enqueue)
		if err != nil {
			e.Detach()
			return err
		}
		e.subs = append(e.subs, s)
	}
	return nil
}

func (e *Emitter) Detach() {
	for _, s := range e.subs {
		s.Remove()
	}
	e.subs = nil
}

func (e *Emitter) enqueue(ev bridge.Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		log.Error().Err(err).Str("module", "mqtt").Str("event", string(ev.Channel)).Msg("marshal payload")
		e.countError()
		return
	}
	select {
	case e.queue <- message{topic: Topic(e.cfg.TopicPrefix, ev.Channel), payload: payload}:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		log.Warn().Str("module", "mqtt").Str("event", string(ev.Channel)).Msg("queue full, event dropped")
	}
}

// Run publishes queued events until ctx is done.
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-e.queue:
			if err := e.publish(m); err != nil {
				log.Warn().Err(err).Str("module", "mqtt").Str("topic", m.topic).Msg("publish failed")
			}
		}
	}
}

func (e *Emitter) publish(m message) error {
	if !e.isConnected() || e.pub == nil {
		e.countError()
		return ErrNotConnected
	}
	token := e.pub.Publish(m.topic, e.cfg.QoS, false, m.payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[m.topic]++
	e.mu.Unlock()
	log.Debug().Str("module", "mqtt").Str("topic", m.topic).Int("size", len(m.payload)).Msg("event published")
	return nil
}

func (e *Emitter) Disconnect() {
	e.Detach()
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		log.Info().Str("module", "mqtt").Msg("disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
	Dropped   uint64
}

func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{Connected: e.connected, Published: published, Errors: e.errors, Dropped: e.dropped}
}

func (e *Emitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
