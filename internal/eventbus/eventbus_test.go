package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessDeliversInOrder(t *testing.T) {
	bus := NewInProcess()
	var got []Name

	unsub := bus.Subscribe(func(ev Event) {
		got = append(got, ev.Name)
	})
	defer unsub()

	bus.Publish(Event{Name: "phase_changed", Timestamp: time.Now()})
	bus.Publish(Event{Name: "task_completed", Timestamp: time.Now()})

	require.Equal(t, []Name{"phase_changed", "task_completed"}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInProcess()
	count := 0
	unsub := bus.Subscribe(func(Event) { count++ })

	bus.Publish(Event{Name: "x"})
	unsub()
	bus.Publish(Event{Name: "x"})

	assert.Equal(t, 1, count)
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	bus := NewInProcess()
	a, b := 0, 0
	bus.Subscribe(func(Event) { a++ })
	bus.Subscribe(func(Event) { b++ })

	bus.Publish(Event{Name: "gate_passed"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
