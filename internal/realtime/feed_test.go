package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// gateToken completes once gate is closed.
type gateToken struct{ gate chan struct{} }

func (t gateToken) Wait() bool {
	<-t.gate
	return true
}

func (t gateToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.gate:
		return true
	case <-time.After(d):
		return false
	}
}

func (t gateToken) Done() <-chan struct{} { return t.gate }
func (t gateToken) Error() error          { return nil }

type fakeClient struct {
	mu         sync.Mutex
	handlers   map[string]mqtt.MessageHandler
	published  [][]byte
	subscribes int
	gate       chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: map[string]mqtt.MessageHandler{}}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = cb
	c.subscribes++
	if c.gate != nil {
		return gateToken{gate: c.gate}
	}
	return doneToken{}
}

func (c *fakeClient) subscribeCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return doneToken{}
}

func (c *fakeClient) Publish(_ string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, payload.([]byte))
	return doneToken{}
}

func TestFeedFollowsSession(t *testing.T) {
	client := newFakeClient()
	session := auth.NewSession()
	feed := NewFeed(client, "vibrate/changes", session)
	feed.Start()
	defer feed.Stop()

	assert.False(t, feed.Subscribed())

	session.SignIn(auth.User{ID: "u1"})
	assert.True(t, feed.Subscribed())
	assert.Contains(t, client.handlers, "vibrate/changes")

	session.SignOut()
	assert.False(t, feed.Subscribed())
	assert.NotContains(t, client.handlers, "vibrate/changes")
}

func TestFeedStartWhileSignedIn(t *testing.T) {
	session := auth.NewSession()
	session.SignIn(auth.User{ID: "u1"})
	feed := NewFeed(newFakeClient(), "vibrate/changes", session)
	feed.Start()
	assert.True(t, feed.Subscribed())
}

func TestDispatchFlagsForeignChanges(t *testing.T) {
	session := auth.NewSession()
	feed := NewFeed(newFakeClient(), "vibrate/changes", session)
	feed.Start()
	session.SignIn(auth.User{ID: "u1"})

	var got []domain.ChangeEvent
	cancel := feed.Listen(domain.Filter{}, func(ev domain.ChangeEvent) { got = append(got, ev) })

	own, _ := json.Marshal(domain.ChangeEvent{EventType: domain.ChangeInsert, Record: domain.MeasurementRecord{ID: "a", UserID: "u1"}})
	other, _ := json.Marshal(domain.ChangeEvent{EventType: domain.ChangeDelete, Record: domain.MeasurementRecord{ID: "b", UserID: "u2"}})
	feed.dispatch(own)
	feed.dispatch(other)
	feed.dispatch([]byte(`{"eventType":"truncate"}`))
	feed.dispatch([]byte(`not json`))

	require.Len(t, got, 2)
	assert.False(t, got[0].Foreign)
	assert.True(t, got[1].Foreign)
	assert.Equal(t, domain.ChangeDelete, got[1].EventType)

	cancel()
	feed.dispatch(own)
	assert.Len(t, got, 2)
}

func TestListenFilters(t *testing.T) {
	session := auth.NewSession()
	feed := NewFeed(newFakeClient(), "vibrate/changes", session)
	feed.Start()
	session.SignIn(auth.User{ID: "u1"})

	var unit, equipment []string
	feed.Listen(domain.Filter{Unit: domain.UnitDRI1}, func(ev domain.ChangeEvent) { unit = append(unit, ev.Record.ID) })
	feed.Listen(domain.Filter{Unit: domain.UnitDRI1, Equipment: "CP-cp51"}, func(ev domain.ChangeEvent) {
		equipment = append(equipment, ev.Record.ID)
	})

	for _, r := range []domain.MeasurementRecord{
		{ID: "DRI1_GB-cp48A_2026-10-18", Unit: domain.UnitDRI1, Equipment: "GB-cp48A"},
		{ID: "DRI2_CP-cp51_2026-10-18", Unit: domain.UnitDRI2, Equipment: "CP-cp51"},
		{ID: "DRI1_CP-cp51_2026-10-18", Unit: domain.UnitDRI1, Equipment: "CP-cp51"},
	} {
		payload, _ := json.Marshal(domain.ChangeEvent{EventType: domain.ChangeInsert, Record: r})
		feed.dispatch(payload)
	}

	assert.Equal(t, []string{"DRI1_GB-cp48A_2026-10-18", "DRI1_CP-cp51_2026-10-18"}, unit)
	assert.Equal(t, []string{"DRI1_CP-cp51_2026-10-18"}, equipment)
}

func TestConcurrentSignInSubscribesOnce(t *testing.T) {
	client := newFakeClient()
	client.gate = make(chan struct{})
	feed := NewFeed(client, "vibrate/changes", auth.NewSession())

	done := make(chan struct{})
	go func() {
		feed.subscribe("u1")
		close(done)
	}()
	require.Eventually(t, func() bool { return client.subscribeCalls() == 1 }, time.Second, time.Millisecond)

	// returns at once while the first subscription is still in flight
	feed.subscribe("u1")
	close(client.gate)
	<-done

	assert.Equal(t, 1, client.subscribeCalls())
	assert.True(t, feed.Subscribed())
}

func TestPublisher(t *testing.T) {
	client := newFakeClient()
	pub := NewPublisher(client, "vibrate/changes")

	err := pub.Publish(context.Background(), domain.ChangeEvent{EventType: domain.ChangeUpdate, Record: domain.MeasurementRecord{ID: "x"}, Foreign: true})
	require.NoError(t, err)
	require.Len(t, client.published, 1)

	var ev domain.ChangeEvent
	require.NoError(t, json.Unmarshal(client.published[0], &ev))
	assert.Equal(t, domain.ChangeUpdate, ev.EventType)
	assert.False(t, ev.Foreign)
}
