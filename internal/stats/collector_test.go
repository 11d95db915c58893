package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddFilesScanned(1)
				c.AddFilesCopied(1)
				c.AddFilesFailed(1)
				c.AddFilesSkipped(1)
				c.AddFilesDeleted(1)
				c.AddBytesCopied(256)
				c.AddDirsCreated(1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.FilesScanned)
	assert.Equal(t, expected, s.FilesCopied)
	assert.Equal(t, expected, s.FilesFailed)
	assert.Equal(t, expected, s.FilesSkipped)
	assert.Equal(t, expected, s.FilesDeleted)
	assert.Equal(t, expected*256, s.BytesCopied)
	assert.Equal(t, expected, s.DirsCreated)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		FilesScanned: 10,
		FilesCopied:  8,
		FilesFailed:  1,
		FilesSkipped: 1,
		FilesDeleted: 2,
		BytesCopied:  4096,
		DirsCreated:  3,
	}
	assert.Equal(t, "scanned=10 copied=8 failed=1 skipped=1 deleted=2 bytes=4096 dirs=3", s.String())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		expected string
		input    int64
	}{
		{"0 B", 0},
		{"512 B", 512},
		{"1.0 KiB", 1024},
		{"1.5 KiB", 1536},
		{"1.0 MiB", 1048576},
		{"1.0 GiB", 1073741824},
		{"0 B", -5},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestSetTotals(t *testing.T) {
	c := NewCollector()
	c.SetTotals(42, 1<<20)

	s := c.Snapshot()
	assert.Equal(t, int64(42), s.FilesTotal)
	assert.Equal(t, int64(1<<20), s.BytesTotal)
}

func TestRollingSpeed(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.RollingSpeed(5), "no ticks yet")

	c.AddBytesCopied(1000)
	c.Tick()
	c.AddBytesCopied(3000)
	c.Tick()

	assert.InDelta(t, 2000.0, c.RollingSpeed(2), 0.001)
	assert.InDelta(t, 3000.0, c.RollingSpeed(1), 0.001)
	// Asking for more samples than recorded averages over what exists.
	assert.InDelta(t, 2000.0, c.RollingSpeed(30), 0.001)
}

func TestSparklineData(t *testing.T) {
	c := NewCollector()
	assert.Empty(t, c.SparklineData(10))

	c.AddBytesCopied(100)
	c.Tick()
	c.AddBytesCopied(200)
	c.Tick()
	c.AddBytesCopied(300)
	c.Tick()

	assert.Equal(t, []float64{100, 200, 300}, c.SparklineData(10))
	assert.Equal(t, []float64{200, 300}, c.SparklineData(2))
}

func TestETA(t *testing.T) {
	c := NewCollector()
	c.SetTotals(1, 10_000)
	assert.Zero(t, c.ETA(), "no speed samples")

	c.AddBytesCopied(1000)
	c.Tick()
	assert.Equal(t, 9*time.Second, c.ETA())

	c.AddBytesCopied(9000)
	assert.Zero(t, c.ETA(), "nothing remaining")
}

func TestElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, c.Elapsed(), 5*time.Millisecond)
}
