package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewBWLimiter returns a limiter capping aggregate copy throughput to
// bytesPerSec. Burst is 1 MiB, or the rate itself when lower, so normal
// read sizes pass without splitting.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := 1 << 20
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// throttledReader charges every read against a shared limiter. It waits on
// a background context: a file that has started copying is always
// finished, cancellation only takes effect between files.
type throttledReader struct {
	r       io.Reader
	limiter *rate.Limiter
}

func throttle(r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &throttledReader{r: r, limiter: limiter}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if len(p) > t.limiter.Burst() {
		p = p[:t.limiter.Burst()]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(context.Background(), n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
