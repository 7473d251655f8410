package stats

import (
	"sync/atomic"
	"time"
)

// mean is a running mean of durations
type mean struct {
	count uint64
	sum   uint64
}

func (m *mean) add(value time.Duration) {
	if value < 0 {
		value = 0
	}
	atomic.AddUint64(&m.count, 1)
	atomic.AddUint64(&m.sum, uint64(value))
}

func (m *mean) get() time.Duration {
	count := atomic.LoadUint64(&m.count)
	sum := atomic.LoadUint64(&m.sum)

	if count == 0 {
		return 0
	}

	return time.Duration(sum / count)
}

func (m *mean) reset() {
	atomic.StoreUint64(&m.count, 0)
	atomic.StoreUint64(&m.sum, 0)
}
