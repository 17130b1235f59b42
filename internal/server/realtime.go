package server

import (
	"context"
	"sync"
	"time"
)

const (
	// RealtimeEventDayChanged announces that one or more calendar days
	// were mutated and cached views of them are stale.
	RealtimeEventDayChanged = "day-change"
)

// RealtimeMessage is one event fanned out to a user's open streams.
type RealtimeMessage struct {
	UserID    string    `json:"-"`
	EventType string    `json:"event_type"`
	Dates     []string  `json:"dates"`
	Timestamp time.Time `json:"timestamp"`
}

// RealtimeDispatcher fans day-change events out to per-user subscriber
// channels. Slow subscribers are skipped, never blocked on.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

// NewRealtimeDispatcher constructs an empty dispatcher.
func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for the user. The stream is torn down
// when the context ends or the returned cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, userID string) (<-chan RealtimeMessage, func()) {
	if userID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(userID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(userID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// PublishDayChanged announces mutated days to the user's streams.
func (d *RealtimeDispatcher) PublishDayChanged(userID string, timestamp time.Time, dates ...string) {
	if userID == "" || len(dates) == 0 {
		return
	}
	message := RealtimeMessage{
		UserID:    userID,
		EventType: RealtimeEventDayChanged,
		Dates:     dates,
		Timestamp: timestamp,
	}
	d.mu.RLock()
	subscribers := d.subscribers[userID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(userID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[userID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(userID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}
