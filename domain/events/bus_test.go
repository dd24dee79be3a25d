package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBusOrdering(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var calls []string

	bus.On(Wildcard, func(p Payload) { calls = append(calls, "wild:"+p.Type()) })
	bus.On(NodeAdded, func(Payload) { calls = append(calls, "first") })
	bus.On(NodeAdded, func(Payload) { calls = append(calls, "second") })

	bus.Emit(NodeAdded, Payload{})
	bus.Emit(EdgeDeleted, NewEdgeDeleted("e1"))

	assert.Equal(t, []string{"first", "second", "wild:node_added", "wild:edge_deleted"}, calls)
}

func TestBusSetsType(t *testing.T) {
	bus := NewBus(nil)
	var got Payload
	bus.On(NodeClicked, func(p Payload) { got = p })

	bus.Emit(NodeClicked, Payload{"node_id": "n1"})
	assert.Equal(t, NodeClicked, got.Type())
	assert.Equal(t, "n1", got["node_id"])
}

func TestBusRecoversHandlerPanic(t *testing.T) {
	bus := NewBus(nil)
	reached := false
	bus.On(Sync, func(Payload) { panic("boom") })
	bus.On(Sync, func(Payload) { reached = true })

	assert.NotPanics(t, func() { bus.Emit(Sync, nil) })
	assert.True(t, reached)
}

func TestNodeDeletedPayloadNeverNil(t *testing.T) {
	p := NewNodeDeleted("n1", nil)
	assert.Equal(t, []string{}, p["deleted_edges"])
}
