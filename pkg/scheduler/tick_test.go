package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/jzx17/roundrobin/internal/testutils"
	"github.com/jzx17/roundrobin/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTickSource_InvalidQuantum(t *testing.T) {
	for _, q := range []time.Duration{0, -time.Second} {
		ts, err := NewTickSource(nil, q)
		assert.Nil(t, ts)
		assert.ErrorIs(t, err, types.ErrTimerCreate)
	}
}

func TestTickSource_Lifecycle(t *testing.T) {
	mock := testutils.NewMockClock(t)
	ts, err := NewTickSource(testutils.NewClockWrapper(mock), testQuantum)
	require.NoError(t, err)
	assert.Equal(t, testQuantum, ts.Quantum())
	assert.Nil(t, ts.C(), "unarmed tick source must not deliver")

	require.NoError(t, ts.Start())
	assert.ErrorIs(t, ts.Start(), types.ErrTimerCreate)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		mock.Advance(testQuantum).MustWait(ctx)
		select {
		case <-ts.C():
			ts.Observe()
		case <-ctx.Done():
			t.Fatalf("tick %d not delivered", i+1)
		}
	}
	assert.Equal(t, int64(3), ts.Fired())

	ts.Stop()
	ts.Stop()
	assert.Nil(t, ts.C())
	assert.ErrorIs(t, ts.Start(), types.ErrTimerCreate)
}

func TestTickSource_RealClock(t *testing.T) {
	ts, err := NewTickSource(nil, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, ts.Start())
	defer ts.Stop()

	select {
	case <-ts.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}
