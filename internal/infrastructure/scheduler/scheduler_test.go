package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(nil)
	job := &countingJob{name: "test"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "other"}, nil), ErrNilSchedule)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(nil)
	ctx := context.Background()

	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(ctx), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(nil)
	job := &countingJob{name: "manual"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "manual")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNow_JobError(t *testing.T) {
	s := NewScheduler(nil)
	jobErr := errors.New("gateway down")
	job := &countingJob{name: "failing", err: jobErr}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "failing")
	assert.ErrorIs(t, err, jobErr)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, jobErr)
}

func TestScheduler_ListJobs(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.Register(&countingJob{name: "b"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.DisableJob("b"))

	infos := s.ListJobs()
	require.Len(t, infos, 2)

	byName := make(map[string]JobInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.True(t, byName["a"].Enabled)
	assert.False(t, byName["b"].Enabled)
	assert.Equal(t, "@every 1m0s", byName["a"].Schedule)
}

func TestIntervalSchedule(t *testing.T) {
	schedule := NewIntervalSchedule(5 * time.Minute)

	now := time.Now()
	assert.Equal(t, now.Add(5*time.Minute), schedule.Next(now))
	assert.Equal(t, "@every 5m0s", schedule.String())
}
