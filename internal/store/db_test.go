package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolConfigDefaults(t *testing.T) {
	p := PoolConfig{}.withDefaults()
	assert.Equal(t, 30, p.MaxOpenConns)
	assert.Equal(t, 15, p.MaxIdleConns)
	assert.Equal(t, time.Hour, p.ConnMaxLifetime)
	assert.Equal(t, 10*time.Minute, p.ConnMaxIdleTime)

	p = PoolConfig{MaxOpenConns: 4, MaxIdleConns: 10}.withDefaults()
	assert.Equal(t, 4, p.MaxIdleConns, "idle connections are capped at the open limit")
}
