package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/utils/async"
)

func TestDispatcher(t *testing.T) {
	d := async.NewDispatcher()
	var calls atomic.Int32

	for range 3 {
		d.Dispatch(context.Background(), func(ctx context.Context) error {
			calls.Add(1)
			return nil
		})
	}
	d.Dispatch(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("failure is logged, not propagated")
	})
	d.Dispatch(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		panic("recovered")
	})

	d.Wait()
	gt.Value(t, calls.Load()).Equal(int32(5))
}

func TestDispatcherDetachesCancellation(t *testing.T) {
	d := async.NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ctxErr error
	d.Dispatch(ctx, func(ctx context.Context) error {
		ctxErr = ctx.Err()
		return nil
	})
	d.Wait()

	gt.NoError(t, ctxErr)
}
