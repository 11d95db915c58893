package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

const ringSize = 60

// Collector tracks backup run statistics using lock-free atomic counters.
// Workers write; presenters read via Snapshot and the rolling rate helpers.
type Collector struct {
	filesScanned atomic.Int64
	filesCopied  atomic.Int64
	filesFailed  atomic.Int64
	filesSkipped atomic.Int64
	filesDeleted atomic.Int64
	bytesCopied  atomic.Int64
	dirsCreated  atomic.Int64
	filesTotal   atomic.Int64
	bytesTotal   atomic.Int64
	startTime    time.Time

	// Ring buffer, written only by Tick.
	mu         sync.Mutex
	throughput [ringSize]int64
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records the size of the copy phase (files and bytes to copy).
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddFilesScanned(n int64) { c.filesScanned.Add(n) }
func (c *Collector) AddFilesCopied(n int64)  { c.filesCopied.Add(n) }
func (c *Collector) AddFilesFailed(n int64)  { c.filesFailed.Add(n) }
func (c *Collector) AddFilesSkipped(n int64) { c.filesSkipped.Add(n) }
func (c *Collector) AddFilesDeleted(n int64) { c.filesDeleted.Add(n) }
func (c *Collector) AddBytesCopied(n int64)  { c.bytesCopied.Add(n) }
func (c *Collector) AddDirsCreated(n int64)  { c.dirsCreated.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesScanned int64
	FilesCopied  int64
	FilesFailed  int64
	FilesSkipped int64
	FilesDeleted int64
	BytesCopied  int64
	DirsCreated  int64
	FilesTotal   int64
	BytesTotal   int64
	Elapsed      time.Duration
}

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesScanned: c.filesScanned.Load(),
		FilesCopied:  c.filesCopied.Load(),
		FilesFailed:  c.filesFailed.Load(),
		FilesSkipped: c.filesSkipped.Load(),
		FilesDeleted: c.filesDeleted.Load(),
		BytesCopied:  c.bytesCopied.Load(),
		DirsCreated:  c.dirsCreated.Load(),
		FilesTotal:   c.filesTotal.Load(),
		BytesTotal:   c.bytesTotal.Load(),
		Elapsed:      c.Elapsed(),
	}
}

// Tick records the byte delta since the previous tick. Presenters call it
// once per second.
func (c *Collector) Tick() {
	current := c.bytesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n ticks.
func (c *Collector) RollingSpeed(n int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		sum += c.throughput[(c.ringIdx-1-i+ringSize)%ringSize]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns up to n of the most recent per-tick byte deltas,
// oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	out := make([]float64, count)
	for i := range count {
		out[count-1-i] = float64(c.throughput[(c.ringIdx-1-i+ringSize)%ringSize])
	}
	return out
}

// ETA estimates remaining time from the rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesCopied.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"scanned=%d copied=%d failed=%d skipped=%d deleted=%d bytes=%d dirs=%d",
		s.FilesScanned, s.FilesCopied, s.FilesFailed, s.FilesSkipped,
		s.FilesDeleted, s.BytesCopied, s.DirsCreated,
	)
}

// FormatBytes returns a human-readable byte count in IEC units.
func FormatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}
