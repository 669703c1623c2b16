package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmitDeliversToRegisteredHandler(t *testing.T) {
	t.Cleanup(Reset)

	type payload struct{ ID string }
	got := make(chan interface{}, 1)
	On("contact.created", func(data interface{}) { got <- data })

	sent := &payload{ID: "c-1"}
	Emit("contact.created", sent)

	select {
	case data := <-got:
		require.Same(t, sent, data)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received the payload")
	}
}

func TestEmitReachesEveryHandler(t *testing.T) {
	t.Cleanup(Reset)

	got := make(chan string, 2)
	On("campaign.processed", func(data interface{}) { got <- "stats" })
	On("campaign.processed", func(data interface{}) { got <- "webhooks" })

	Emit("campaign.processed", nil)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case name := <-got:
			seen[name] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 2 handlers fired", i)
		}
	}
	require.True(t, seen["stats"])
	require.True(t, seen["webhooks"])
}

func TestEmitIgnoresOtherEvents(t *testing.T) {
	t.Cleanup(Reset)

	got := make(chan interface{}, 1)
	On("message_open.created", func(data interface{}) { got <- data })

	Emit("message_click.created", nil)

	select {
	case <-got:
		t.Fatal("handler fired for an event it never subscribed to")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmitRecoversPanickingHandler(t *testing.T) {
	t.Cleanup(Reset)

	got := make(chan interface{}, 1)
	On("alert.created", func(data interface{}) { panic("boom") })
	On("alert.created", func(data interface{}) { got <- data })

	Emit("alert.created", "sev1")

	// The panic stays inside its goroutine; the sibling handler still runs.
	select {
	case data := <-got:
		require.Equal(t, "sev1", data)
	case <-time.After(2 * time.Second):
		t.Fatal("surviving handler never received the payload")
	}
}

func TestResetDropsHandlers(t *testing.T) {
	got := make(chan interface{}, 1)
	On("contact_import.created", func(data interface{}) { got <- data })
	Reset()

	Emit("contact_import.created", nil)

	select {
	case <-got:
		t.Fatal("handler survived a reset")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConcurrentRegistrationAndEmit(t *testing.T) {
	t.Cleanup(Reset)

	var wg sync.WaitGroup
	var delivered atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			On("burst.created", func(data interface{}) { delivered.Add(1) })
		}()
	}
	wg.Wait()

	Emit("burst.created", nil)

	require.Eventually(t, func() bool { return delivered.Load() == 10 },
		2*time.Second, 10*time.Millisecond)
}
