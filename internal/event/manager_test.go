package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListenersReceiveMatchingEventsInOrder(t *testing.T) {
	m := NewManager(8)

	var mu sync.Mutex
	sales := make([]string, 0)
	all := make([]Type, 0)

	m.AddEventListener(SaleEvent, func(e Event) {
		mu.Lock()
		sales = append(sales, e.TxID)
		mu.Unlock()
	})
	m.AddEventListener(AllEvents, func(e Event) {
		mu.Lock()
		all = append(all, e.Type)
		mu.Unlock()
	})

	m.EmitEvent(Event{Type: ListedEvent, TxID: "1"})
	m.EmitEvent(Event{Type: SaleEvent, TxID: "2"})
	m.EmitEvent(Event{Type: SaleEvent, TxID: "3"})
	m.Close()

	assert.Equal(t, []string{"2", "3"}, sales)
	assert.Equal(t, []Type{ListedEvent, SaleEvent, SaleEvent}, all)
}

func TestEmitWithoutListeners(t *testing.T) {
	m := NewManager(0)
	m.EmitEvent(Event{Type: OfferMadeEvent})
	m.Close()
	m.Close()
	m.EmitEvent(Event{Type: OfferMadeEvent})
}

func TestEmitDoesNotBlockOnStalledListener(t *testing.T) {
	m := NewManager(1)
	release := make(chan struct{})

	var mu sync.Mutex
	seen := make([]string, 0)
	m.AddEventListener(AllEvents, func(e Event) {
		<-release
		mu.Lock()
		seen = append(seen, e.TxID)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		for _, id := range []string{"1", "2", "3", "4"} {
			m.EmitEvent(Event{Type: SaleEvent, TxID: id})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitEvent blocked on a stalled listener")
	}

	close(release)
	m.Close()
	assert.Equal(t, []string{"1", "2", "3", "4"}, seen)
}

func TestAddListenerAfterClose(t *testing.T) {
	m := NewManager(1)
	m.Close()

	called := false
	m.AddEventListener(AllEvents, func(e Event) { called = true })
	m.EmitEvent(Event{Type: SaleEvent})
	m.Close()

	assert.False(t, called)
}
