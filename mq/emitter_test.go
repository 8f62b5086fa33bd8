package mq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmitterDeliversToListeners(t *testing.T) {
	e := NewLocalEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan CatalogChange, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Listen(ctx, func(c CatalogChange) { got <- c })
	}()

	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.listeners) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Emit(context.Background(), CatalogChange{EventID: "e1", Action: ActionUpdated}))
	select {
	case c := <-got:
		assert.Equal(t, "e1", c.EventID)
		assert.Equal(t, ActionUpdated, c.Action)
	case <-time.After(time.Second):
		t.Fatal("change not delivered")
	}

	cancel()
	<-done
	e.mu.Lock()
	assert.Empty(t, e.listeners)
	e.mu.Unlock()
}

func TestLocalEmitterWithoutListeners(t *testing.T) {
	assert.NoError(t, NewLocalEmitter().Emit(context.Background(), CatalogChange{EventID: "e1"}))
}
