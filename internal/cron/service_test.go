package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	f.acquires++
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.held = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunCycleRunsAllJobsAndCombinesErrors(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	after := &testJob{name: "after"}
	registry, err := NewRegistry(ok, failing, after)
	require.NoError(t, err)
	lock := &fakeLock{}

	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: lock})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "fail: boom")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, after.runs)
	assert.False(t, lock.held, "lock must be released after the cycle")
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "nudge"}
	registry, err := NewRegistry(job)
	require.NoError(t, err)
	lock := &fakeLock{held: true}

	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: lock})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "nudge"}
	registry, err := NewRegistry(job)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: &fakeLock{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, service.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs)
}
