package realtime

import (
	"fmt"
	"testing"
)

func TestPublishOrderPerEvent(t *testing.T) {
	hub := NewHub(32)
	sub := hub.Subscribe("evt-1")

	for i := 0; i < 10; i++ {
		hub.Publish("evt-1", NewMessage(MessageParticipantCheckedIn, map[string]int{"seq": i}))
	}
	hub.Unsubscribe(sub)

	i := 0
	for msg := range sub.C {
		expected := fmt.Sprintf(`{"seq":%d}`, i)
		if string(msg.Payload) != expected {
			t.Fatalf("message %d out of order: got %s", i, msg.Payload)
		}
		i++
	}
	if i != 10 {
		t.Fatalf("expected 10 messages, got %d", i)
	}
}

func TestPublishDoesNotCrossEvents(t *testing.T) {
	hub := NewHub(8)
	sub1 := hub.Subscribe("evt-1")
	sub2 := hub.Subscribe("evt-2")

	hub.Publish("evt-1", NewMessage(MessageDeviceStatusUpdated, nil))
	hub.Unsubscribe(sub1)
	hub.Unsubscribe(sub2)

	count1 := 0
	for range sub1.C {
		count1++
	}
	count2 := 0
	for range sub2.C {
		count2++
	}
	if count1 != 1 || count2 != 0 {
		t.Fatalf("expected 1/0 messages, got %d/%d", count1, count2)
	}
}

func TestSlowSubscriberDropsMessages(t *testing.T) {
	hub := NewHub(2)
	drops := 0
	hub.OnDrop(func() { drops++ })
	sub := hub.Subscribe("evt-1")

	for i := 0; i < 5; i++ {
		hub.Publish("evt-1", NewMessage(MessageParticipantCheckedIn, i))
	}
	hub.Unsubscribe(sub)

	received := 0
	for range sub.C {
		received++
	}
	if received != 2 {
		t.Fatalf("expected buffer-bound 2 messages, got %d", received)
	}
	if drops != 3 {
		t.Fatalf("expected 3 drops, got %d", drops)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe("evt-1")
	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	if hub.SubscriberCount("evt-1") != 0 {
		t.Fatalf("expected no subscribers after unsubscribe")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe("evt-1")
	hub.Close()
	hub.Publish("evt-1", NewMessage(MessageParticipantCheckedIn, nil))
	for range sub.C {
		t.Fatalf("expected no delivery after close")
	}
	late := hub.Subscribe("evt-1")
	for range late.C {
		t.Fatalf("expected closed channel for post-close subscriber")
	}
}
