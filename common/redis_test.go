package common

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client := NewRedisClient(addr, "", 0, zap.NewNop())
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, NewRedisClient(addr, "", 0, zap.NewNop()))
}
