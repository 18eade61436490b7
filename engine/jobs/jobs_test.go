package jobs

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemRunsTasks(t *testing.T) {
	s, err := NewSystem(2, 8)
	require.NoError(t, err)

	var completed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		s.Submit(Task{
			OnStart: func() (interface{}, error) {
				return 42, nil
			},
			OnComplete: func(result interface{}) {
				defer wg.Done()
				if result.(int) == 42 {
					completed.Add(1)
				}
			},
		})
	}
	wg.Wait()
	require.NoError(t, s.Shutdown())
	assert.Equal(t, int32(10), completed.Load())
}

func TestSystemFailurePath(t *testing.T) {
	s, err := NewSystem(1, 4)
	require.NoError(t, err)
	defer s.Shutdown()

	boom := errors.New("boom")
	failed := make(chan error, 1)
	s.Submit(Task{
		OnStart: func() (interface{}, error) {
			return nil, boom
		},
		OnComplete: func(interface{}) {
			t.Error("OnComplete must not run for a failed task")
		},
		OnFailure: func(err error) {
			failed <- err
		},
	})

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure callback")
	}
}

func TestSystemRejectsBadConfig(t *testing.T) {
	_, err := NewSystem(0, 4)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestPumpDispatchesOnlyOnUpdate(t *testing.T) {
	p := NewPump(4)

	var ran atomic.Int32
	p.Enqueue(func() { ran.Add(1) })
	p.Enqueue(func() { ran.Add(1) })

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load(), "callbacks must wait for Update")

	p.Update()
	assert.Equal(t, int32(2), ran.Load())
	assert.Equal(t, 0, p.Pending())
}

func TestPumpBudgetLimitsDispatch(t *testing.T) {
	p := NewPump(4)
	p.SetBudget(time.Millisecond)

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		p.Enqueue(func() {
			ran.Add(1)
			time.Sleep(5 * time.Millisecond)
		})
	}

	p.Update()
	assert.Equal(t, int32(1), ran.Load(), "one slow callback should exhaust the budget")
	assert.Equal(t, 2, p.Pending())

	p.SetBudget(0)
	p.Update()
	assert.Equal(t, int32(3), ran.Load())
}
