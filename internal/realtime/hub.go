package realtime

import (
	"encoding/json"
	"sync"
)

// Message kinds pushed on an event channel.
const (
	MessageDeviceStatusUpdated   = "device-status-updated"
	MessageParticipantCheckedIn  = "participant-checked-in"
	MessageParticipantCheckedOut = "participant-checked-out"
)

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewMessage(kind string, payload interface{}) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return Message{Type: kind, Payload: data}
}

// Publisher is the capability the coordinator and registry depend on.
// A horizontally scaled deployment would back it with a shared bus;
// the Hub below is the single-process implementation.
type Publisher interface {
	Publish(eventID string, msg Message)
}

type Subscriber struct {
	EventID string
	C       <-chan Message

	id int
	ch chan Message
}

// Hub is a process-local publish/subscribe registry keyed by event id.
// Delivery is at-most-once: a subscriber whose buffer is full misses
// the message. Messages for the same event reach each subscriber in
// publish order because fan-out happens under a single lock.
type Hub struct {
	mu      sync.Mutex
	nextID  int
	subs    map[string]map[int]*Subscriber
	bufSize int
	dropped func()
	closed  bool
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Hub{
		subs:    make(map[string]map[int]*Subscriber),
		bufSize: bufSize,
	}
}

// OnDrop registers a callback invoked once per dropped message,
// used to feed the drop counter metric.
func (h *Hub) OnDrop(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped = fn
}

func (h *Hub) Subscribe(eventID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		ch := make(chan Message)
		close(ch)
		return &Subscriber{EventID: eventID, C: ch, ch: ch}
	}
	h.nextID++
	ch := make(chan Message, h.bufSize)
	sub := &Subscriber{EventID: eventID, C: ch, id: h.nextID, ch: ch}
	if h.subs[eventID] == nil {
		h.subs[eventID] = make(map[int]*Subscriber)
	}
	h.subs[eventID][sub.id] = sub
	return sub
}

// Unsubscribe is idempotent and closes the subscriber channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.subs[sub.EventID]
	if !ok {
		return
	}
	if _, ok := group[sub.id]; !ok {
		return
	}
	delete(group, sub.id)
	if len(group) == 0 {
		delete(h.subs, sub.EventID)
	}
	close(sub.ch)
}

// Publish never blocks: a slow subscriber drops the message.
func (h *Hub) Publish(eventID string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs[eventID] {
		select {
		case sub.ch <- msg:
		default:
			if h.dropped != nil {
				h.dropped()
			}
		}
	}
}

// SubscriberCount reports how many clients are joined to an event channel.
func (h *Hub) SubscriberCount(eventID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[eventID])
}

// Close shuts every subscriber channel down; further publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for eventID, group := range h.subs {
		for _, sub := range group {
			close(sub.ch)
		}
		delete(h.subs, eventID)
	}
}
