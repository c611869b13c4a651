package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type warmerFunc func(ctx context.Context) error

func (f warmerFunc) RefreshBasic(ctx context.Context) error { return f(ctx) }

func TestStartRunsWarmerImmediately(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{}, 1)

	s, err := Start(warmerFunc(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("missing deadline")
		}
		runs.Add(1)
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}), time.Hour, time.Second)
	require.NoError(t, err)
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("warmer did not run")
	}
	require.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestStopOnNilScheduler(t *testing.T) {
	var s *Scheduler
	s.Stop()
}
