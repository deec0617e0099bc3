package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRoutingKey(t *testing.T) {
	assert.Equal(t, "order.status.cancelled", StatusRoutingKey("cancelled"))
	assert.Equal(t, "order.status.delivered", StatusRoutingKey("delivered"))
}

func TestNopEmitter(t *testing.T) {
	var e Emitter = Nop{}
	assert.NoError(t, e.StatusChanged(context.Background(), StatusChanged{}))
	assert.NoError(t, e.CancellationCompleted(context.Background(), CancellationCompleted{}))
}
