package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AfterFunc_FiresAfterAdvance(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)

	var fired atomic.Bool
	p.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })

	mock.Add(40 * time.Millisecond)
	assert.False(t, fired.Load(), "must not fire before the deadline")

	mock.Add(20 * time.Millisecond)
	assert.True(t, fired.Load(), "must fire once the deadline has passed")
}

func TestPool_AfterFunc_CancelBeforeFire(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)

	var fired atomic.Bool
	h := p.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })

	ok := h.Stop()
	require.True(t, ok, "Stop before the deadline reports it cancelled a pending fire")

	mock.Add(100 * time.Millisecond)
	assert.False(t, fired.Load(), "a cancelled timer must never fire")
}

func TestPool_AtFunc_PastDeadlineFiresImmediately(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)

	var fired atomic.Bool
	p.AtFunc(mock.Now().Add(-time.Minute), func() { fired.Store(true) })

	mock.Add(time.Millisecond)
	assert.True(t, fired.Load())
}

func TestPool_AtFunc_FutureDeadline(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)

	deadline := mock.Now().Add(30 * time.Millisecond)
	var fired atomic.Bool
	p.AtFunc(deadline, func() { fired.Store(true) })

	mock.Add(29 * time.Millisecond)
	assert.False(t, fired.Load())

	mock.Add(2 * time.Millisecond)
	assert.True(t, fired.Load())
}

func TestPool_Now(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)

	assert.Equal(t, mock.Now(), p.Now())
	mock.Add(time.Hour)
	assert.Equal(t, mock.Now(), p.Now())
}
