package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testMute(tm time.Time, interval time.Duration, max int) *BatchMute {
	return &BatchMute{
		lock:          &sync.Mutex{},
		batchTime:     tm,
		resetInterval: interval,
		max:           max,
	}
}

func TestBatchMute(t *testing.T) {
	tm := time.Date(2023, time.November, 10, 23, 0, 0, 0, time.UTC)
	bm := testMute(tm, 10*time.Second, 5)

	for i := 0; i < 5; i++ {
		tm = tm.Add(time.Second)
		muted, skipped := bm.increment(1, tm)
		assert.False(t, muted)
		assert.Zero(t, skipped)
	}

	// first muted event
	tm = tm.Add(time.Second)
	muted, skipped := bm.increment(1, tm)
	assert.True(t, muted)
	assert.Zero(t, skipped)

	for i := 0; i < 4; i++ {
		tm = tm.Add(time.Second)
		muted, _ = bm.increment(1, tm)
		assert.True(t, muted)
	}

	// the window ends, muted events are reported once
	tm = tm.Add(time.Second)
	muted, skipped = bm.increment(1, tm)
	assert.False(t, muted)
	assert.Equal(t, 5, skipped)
}

func TestBatchMuteDisabled(t *testing.T) {
	tm := time.Date(2023, time.November, 10, 23, 0, 0, 0, time.UTC)
	for _, bm := range []*BatchMute{
		testMute(tm, 10*time.Second, 0),
		testMute(tm, 0, 5),
	} {
		for i := 0; i < 20; i++ {
			tm = tm.Add(time.Second)
			muted, skipped := bm.increment(1, tm)
			assert.False(t, muted)
			assert.Zero(t, skipped)
		}
	}
}
