package engine

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBWLimiter(t *testing.T) {
	t.Parallel()

	t.Run("burst capped to rate when rate < 1MB", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(1024)
		assert.Equal(t, 1024, lim.Burst())
	})

	t.Run("burst is 1MB when rate >= 1MB", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(10 * 1024 * 1024)
		assert.Equal(t, 1<<20, lim.Burst())
	})

	t.Run("zero means unlimited", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, NewBWLimiter(0))
	})
}

func TestThrottle(t *testing.T) {
	t.Parallel()

	t.Run("nil limiter passes reader through", func(t *testing.T) {
		t.Parallel()
		r := bytes.NewReader(nil)
		assert.Same(t, r, throttle(r, nil))
	})

	t.Run("reads all data", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("x"), 4096)
		got, err := io.ReadAll(throttle(bytes.NewReader(data), NewBWLimiter(1<<20)))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("enforces rate limit", func(t *testing.T) {
		t.Parallel()
		// 10 KB at 5 KB/s takes about 1s once the 5 KB burst is spent.
		data := bytes.Repeat([]byte("a"), 10*1024)
		start := time.Now()
		got, err := io.ReadAll(throttle(bytes.NewReader(data), NewBWLimiter(5*1024)))
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Len(t, got, len(data))
		assert.Greater(t, elapsed, 800*time.Millisecond)
	})
}
