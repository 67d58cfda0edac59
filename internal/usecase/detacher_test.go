//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"reply-assistant/internal/usecase"
)

func TestDetacher(t *testing.T) {
	t.Run("survives parent cancellation", func(t *testing.T) {
		d := usecase.NewDetacher(newTestLogger(), time.Second)
		parent, cancel := context.WithCancel(context.Background())
		var sawErr atomic.Value

		d.Go(parent, "slow", func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				sawErr.Store(err)
			}
			return nil
		})
		cancel()
		d.Wait()

		if v := sawErr.Load(); v != nil {
			t.Fatalf("expected detached context to outlive the parent, got %v", v)
		}
	})

	t.Run("applies its own timeout", func(t *testing.T) {
		d := usecase.NewDetacher(newTestLogger(), 10*time.Millisecond)
		var timedOut atomic.Bool

		d.Go(context.Background(), "stuck", func(ctx context.Context) error {
			<-ctx.Done()
			timedOut.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
			return ctx.Err()
		})
		d.Wait()

		if !timedOut.Load() {
			t.Fatal("expected the task deadline to fire")
		}
	})

	t.Run("recovers panics", func(t *testing.T) {
		d := usecase.NewDetacher(nil, time.Second)
		d.Go(context.Background(), "boom", func(context.Context) error { panic("boom") })
		d.Wait()
	})
}
