package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quorum/backend/pkg/logger"
)

type fakeJob struct {
	name string
	err  error
}

func (j *fakeJob) Name() string              { return j.name }
func (j *fakeJob) Schedule() string          { return "@hourly" }
func (j *fakeJob) Run(context.Context) error { return j.err }

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&fakeJob{name: "warmup"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "warmup"}))
	assert.Equal(t, []string{"warmup"}, s.GetAllJobs())
}

func TestRunJobUnknown(t *testing.T) {
	s := New(logger.Nop())
	assert.Error(t, s.RunJob("nope"))
}

func TestRunJobRecordsHistory(t *testing.T) {
	s := New(logger.Nop())
	job := &fakeJob{name: "warmup"}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	history, err := s.GetJobHistory("warmup")
	require.NoError(t, err)

	results := history.GetLatestResults(1)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 1.0, history.GetSuccessRate())
	assert.Empty(t, history.GetFailedResults())

	_, err = s.GetJobHistory("nope")
	assert.Error(t, err)
}

func TestJobHistoryFailures(t *testing.T) {
	history := &JobHistory{}
	history.AddResult(JobResult{JobName: "prune", Success: true})
	history.AddResult(JobResult{JobName: "prune", Success: false, Error: errors.New("db down").Error()})

	assert.InDelta(t, 0.5, history.GetSuccessRate(), 1e-9)
	require.Len(t, history.GetFailedResults(), 1)
	assert.Equal(t, "db down", history.GetFailedResults()[0].Error)
}
