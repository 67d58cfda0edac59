//go:build !integration

package sched_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reply-assistant/internal/config"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/infra/redis"
	"reply-assistant/internal/infra/sched"
)

func newLocker(t *testing.T) (*redis.RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return redis.NewLocker(c), mr
}

func nopLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func TestRunOnceSingleReplicaPerSlot(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t)
	var runs int32
	task := sched.Task{Name: "t", Interval: time.Minute, Run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}}
	a := sched.New(locker, nopLogger(), task)
	b := sched.New(locker, nopLogger(), task)

	ran, err := a.RunOnce(ctx, task)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = b.RunOnce(ctx, task)
	require.NoError(t, err)
	assert.False(t, ran, "second replica must skip the held slot")
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	mr.FastForward(time.Minute)
	ran, err = b.RunOnce(ctx, task)
	require.NoError(t, err)
	assert.True(t, ran, "next slot is free once the lock expires")
}

func TestRunOnceFailureReleasesLock(t *testing.T) {
	ctx := context.Background()
	locker, _ := newLocker(t)
	fail := true
	task := sched.Task{Name: "flaky", Interval: time.Hour, Run: func(context.Context) error {
		if fail {
			return errors.New("db down")
		}
		return nil
	}}
	s := sched.New(locker, nopLogger(), task)

	ran, err := s.RunOnce(ctx, task)
	assert.True(t, ran)
	assert.Error(t, err)

	fail = false
	ran, err = s.RunOnce(ctx, task)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestStartStop(t *testing.T) {
	var runs int32
	s := sched.New(nil, nopLogger(), sched.Task{Name: "tick", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}})
	s.Start(context.Background())
	s.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := atomic.LoadInt32(&runs)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))
}

type fakeJobs struct {
	mu        sync.Mutex
	requeued  int64
	olderThan time.Duration
	payloads  []model.Payload
}

func (f *fakeJobs) RequeueStale(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.requeued, nil
}

func (f *fakeJobs) Enqueue(_ context.Context, p model.Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return "job", nil
}

func TestMaintenanceTasks(t *testing.T) {
	ctx := context.Background()
	cfg := config.SchedulerConfig{
		StaleAfter:        10 * time.Minute,
		StaleInterval:     time.Minute,
		RetentionDays:     90,
		RetentionInterval: 24 * time.Hour,
		TrendInterval:     time.Hour,
	}
	jobs := &fakeJobs{requeued: 2}
	tasks := sched.MaintenanceTasks(cfg, jobs, jobs, nopLogger())
	require.Len(t, tasks, 3)

	for _, task := range tasks {
		require.NoError(t, task.Run(ctx), task.Name)
	}
	assert.Equal(t, 10*time.Minute, jobs.olderThan)
	require.Len(t, jobs.payloads, 2)
	assert.Equal(t, model.RetentionPayload{OlderThanDays: 90}, jobs.payloads[0])
	assert.Equal(t, model.QueueAggregation, jobs.payloads[1].Queue())
}
