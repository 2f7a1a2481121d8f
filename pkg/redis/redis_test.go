package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := Config{URL: "redis://" + mr.Addr(), ReadTimeout: 1, WriteTimeout: 1, DialTimeout: 1}
	require.True(t, cfg.Enabled())

	client, err := cfg.New()
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "PONG", client.Ping(t.Context()).Val())
}

func TestConfigNewRejectsBadURL(t *testing.T) {
	cfg := Config{URL: "not a url"}
	_, err := cfg.New()
	assert.Error(t, err)
	assert.False(t, (&Config{}).Enabled())
}
