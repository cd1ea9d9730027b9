package keymutex

import (
	"sync"
	"testing"
)

func TestSerializesSameKey(t *testing.T) {
	km := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("a")
			counter++
			km.Unlock("a")
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Fatalf("expected 100 increments, got %d", counter)
	}
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	km := New()
	km.Lock("a")
	done := make(chan struct{})
	go func() {
		km.Lock("b")
		km.Unlock("b")
		close(done)
	}()
	<-done
	km.Unlock("a")
}

func TestEntriesReleased(t *testing.T) {
	km := New()
	km.Lock("a")
	km.Unlock("a")
	if len(km.entries) != 0 {
		t.Fatalf("expected entry map drained, got %d entries", len(km.entries))
	}
}
