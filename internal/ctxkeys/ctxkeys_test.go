package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	_, ok := RequestID(context.Background())
	assert.False(t, ok)

	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok, "empty id is treated as absent")

	id, ok := RequestID(WithRequestID(context.Background(), "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}
