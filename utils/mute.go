package utils

import (
	"sync"
	"time"
)

// BatchMute lets at most max events through per interval. A zero max or
// interval disables muting.
type BatchMute struct {
	lock          *sync.Mutex
	batchTime     time.Time
	resetInterval time.Duration
	ctr           int
	max           int
}

// increment reports whether the event is muted and, once a window ends,
// how many events were muted during it.
func (b *BatchMute) increment(val int, t time.Time) (muted bool, skipped int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.max <= 0 || b.resetInterval <= 0 {
		return false, 0
	}
	if b.ctr >= b.max {
		skipped = b.ctr - b.max
	}
	if t.Sub(b.batchTime) > b.resetInterval {
		b.ctr = 0
		b.batchTime = t
	}
	b.ctr += val
	return b.ctr > b.max, skipped
}

func (b *BatchMute) Increment() (muted bool, skipped int) {
	return b.increment(1, time.Now().UTC())
}

func NewBatchMute(resetInterval time.Duration, max int) *BatchMute {
	return &BatchMute{
		lock:          &sync.Mutex{},
		batchTime:     time.Now().UTC(),
		resetInterval: resetInterval,
		max:           max,
	}
}
