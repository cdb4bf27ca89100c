package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterDelivery(t *testing.T) {
	e := NewEmitter(nil)
	var typed, all []EventType
	e.Subscribe(EventGameCreated, func(ev Event) { typed = append(typed, ev.Type) })
	e.SubscribeAll(func(ev Event) { all = append(all, ev.Type) })

	e.Emit(New(EventGameCreated, nil))
	e.Emit(New(EventPlayerJoined, nil))

	assert.Equal(t, []EventType{EventGameCreated}, typed)
	assert.Equal(t, []EventType{EventGameCreated, EventPlayerJoined}, all)
}

func TestEmitterRecoversFromPanics(t *testing.T) {
	e := NewEmitter(nil)
	delivered := false
	e.Subscribe(EventGameEnded, func(Event) { panic("subscriber bug") })
	e.Subscribe(EventGameEnded, func(Event) { delivered = true })

	require.NotPanics(t, func() { e.Emit(New(EventGameEnded, nil)) })
	assert.True(t, delivered, "later subscribers still run")
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a, b := New(EventTokenMint, nil), New(EventTokenMint, nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
