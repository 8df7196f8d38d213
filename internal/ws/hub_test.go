package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go-inventory-hold/internal/events"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishQueuesStockUpdate(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Publish(context.Background(), events.Event{Type: events.HoldCreated, SkuID: "sku-1", Quantity: 3})

	select {
	case raw := <-hub.Broadcast:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "stock_update", msg["type"])
		assert.Equal(t, "hold.created", msg["action"])
		assert.Equal(t, "3 unit(s) of sku-1 held", msg["message"])
	default:
		t.Fatal("nothing queued")
	}
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	for i := 0; i < broadcastBuffer+10; i++ {
		hub.Publish(context.Background(), events.Event{Type: events.SKUChanged, SkuID: "sku-1"})
	}
	assert.Len(t, hub.Broadcast, broadcastBuffer)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	hub.Broadcast <- []byte(`{}`)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Zero(t, hub.ClientCount())
}

func TestHub_JoinAndLeaveDoNotBlockAfterStop(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	returned := make(chan bool, 1)
	go func() {
		joined := hub.Join(nil)
		hub.Leave(nil)
		returned <- joined
	}()
	select {
	case joined := <-returned:
		assert.False(t, joined)
	case <-time.After(time.Second):
		t.Fatal("Join or Leave blocked on a stopped hub")
	}
}
