package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	assert.Equal(t, 1, broker.SubscriberCount())

	broker.Publish(&Event{
		Type:     EventPriorityDelayed,
		Metadata: map[string]string{"job_id": "42"},
	})

	select {
	case event := <-sub:
		assert.Equal(t, EventPriorityDelayed, event.Type)
		assert.Equal(t, "42", event.Metadata["job_id"])
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	broker.Unsubscribe(sub)
	broker.Unsubscribe(sub)
	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestBrokerPublishNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	broker := NewBroker()

	// Not started: the buffer fills and further events are dropped
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			broker.Publish(&Event{Type: EventAgentStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}

	broker.Stop()
	broker.Stop()
	broker.Publish(&Event{Type: EventAgentStopped})
}

func TestBrokerStopWaitsForLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	broker := NewBroker()
	broker.Start()
	broker.Start()
	broker.Stop()

	select {
	case <-broker.doneCh:
	default:
		require.Fail(t, "distribution loop still running after Stop")
	}
}
