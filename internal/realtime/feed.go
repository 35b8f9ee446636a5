// Package realtime carries remote record changes over MQTT so open views can
// refresh without polling.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

const qos = 1

// Client is the subset of mqtt.Client the feed needs.
type Client interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect dials the broker with a unique client id derived from name.
func Connect(broker, name string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(name + "-" + uuid.NewString()).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// Publisher sends change events to the feed topic.
type Publisher struct {
	client Client
	topic  string
}

func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	ev.Foreign = false
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	return wait(ctx, p.client.Publish(p.topic, qos, false, payload))
}

// Feed subscribes to the change topic while a user is signed in and fans
// events out to listeners.
type Feed struct {
	client Client
	topic  string
	auth   auth.Provider

	mu          sync.Mutex
	subscribed  bool
	subscribing bool
	userID      string
	nextID      int
	listeners   map[int]listener
	stopAuth    func()
}

type listener struct {
	filter domain.Filter
	fn     func(domain.ChangeEvent)
}

func NewFeed(client Client, topic string, provider auth.Provider) *Feed {
	return &Feed{
		client:    client,
		topic:     topic,
		auth:      provider,
		listeners: make(map[int]listener),
	}
}

// Start follows the auth signal, subscribing immediately when a user is
// already signed in.
func (f *Feed) Start() {
	f.stopAuth = f.auth.Subscribe(f.onAuth)
	if u, ok := f.auth.CurrentUser(); ok {
		f.onAuth(auth.Event{Type: auth.SignedIn, User: u})
	}
}

func (f *Feed) Stop() {
	if f.stopAuth != nil {
		f.stopAuth()
	}
	f.unsubscribe()
}

// Listen registers fn for change events whose record matches filter and
// returns its cancel func. A zero filter receives every event.
func (f *Feed) Listen(filter domain.Filter, fn func(domain.ChangeEvent)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener{filter: filter, fn: fn}
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// Subscribed reports whether the feed is currently attached to the broker.
func (f *Feed) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed
}

func (f *Feed) onAuth(ev auth.Event) {
	switch ev.Type {
	case auth.SignedIn:
		f.subscribe(ev.User.ID)
	case auth.SignedOut:
		f.unsubscribe()
	}
}

func (f *Feed) subscribe(userID string) {
	f.mu.Lock()
	f.userID = userID
	if f.subscribed || f.subscribing {
		f.mu.Unlock()
		return
	}
	f.subscribing = true
	f.mu.Unlock()

	token := f.client.Subscribe(f.topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		f.dispatch(msg.Payload())
	})
	err := wait(context.Background(), token)

	f.mu.Lock()
	f.subscribing = false
	f.subscribed = err == nil
	f.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("component", "realtime").Str("topic", f.topic).Msg("subscribe failed")
		return
	}
	log.Info().Str("component", "realtime").Str("topic", f.topic).Msg("change feed subscribed")
}

func (f *Feed) unsubscribe() {
	f.mu.Lock()
	was := f.subscribed
	f.subscribed = false
	f.userID = ""
	f.mu.Unlock()
	if !was {
		return
	}

	if err := wait(context.Background(), f.client.Unsubscribe(f.topic)); err != nil {
		log.Warn().Err(err).Str("component", "realtime").Msg("unsubscribe failed")
		return
	}
	log.Info().Str("component", "realtime").Str("topic", f.topic).Msg("change feed unsubscribed")
}

func (f *Feed) dispatch(payload []byte) {
	var ev domain.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Warn().Err(err).Str("component", "realtime").Msg("dropping malformed change event")
		return
	}
	switch ev.EventType {
	case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
	default:
		log.Warn().Str("component", "realtime").Str("event", string(ev.EventType)).Msg("dropping unknown change event")
		return
	}

	f.mu.Lock()
	ev.Foreign = ev.Record.UserID != f.userID
	matched := make([]func(domain.ChangeEvent), 0, len(f.listeners))
	for _, l := range f.listeners {
		if l.filter.Match(&ev.Record) {
			matched = append(matched, l.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range matched {
		fn(ev)
	}
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("mqtt: timed out waiting for broker")
	}
}
