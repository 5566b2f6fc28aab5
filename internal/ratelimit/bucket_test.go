package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBucket_BurstAllowsImmediateConsumption(t *testing.T) {
	b := New(1, 3)
	for i := 0; i < 3; i++ {
		require.Zero(t, b.Wait())
	}
	require.Greater(t, b.Wait(), time.Duration(0))
}

func TestBucket_RefillsOverTime(t *testing.T) {
	start := time.Now()
	cur := start
	b := New(10, 1) // 10 tokens/s, burst 1
	b.now = func() time.Time { return cur }

	require.Zero(t, b.Wait()) // consumes the initial token
	wait := b.Wait()
	require.Greater(t, wait, time.Duration(0))

	cur = cur.Add(200 * time.Millisecond) // refills 2 tokens at 10/s
	require.Zero(t, b.Wait())
}
