package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{name: "open to accepted", from: JobStatusOpen, to: JobStatusAccepted, want: true},
		{name: "open to cancelled", from: JobStatusOpen, to: JobStatusCancelled, want: true},
		{name: "open to in progress skips accept", from: JobStatusOpen, to: JobStatusInProgress, want: false},
		{name: "accepted to in progress", from: JobStatusAccepted, to: JobStatusInProgress, want: true},
		{name: "accepted to completed skips work", from: JobStatusAccepted, to: JobStatusCompleted, want: false},
		{name: "in progress to completion requested", from: JobStatusInProgress, to: JobStatusCompletionRequested, want: true},
		{name: "in progress straight to completed", from: JobStatusInProgress, to: JobStatusCompleted, want: true},
		{name: "completion requested to completed", from: JobStatusCompletionRequested, to: JobStatusCompleted, want: true},
		{name: "completion requested back to in progress", from: JobStatusCompletionRequested, to: JobStatusInProgress, want: false},
		{name: "completed is terminal", from: JobStatusCompleted, to: JobStatusCancelled, want: false},
		{name: "cancelled is terminal", from: JobStatusCancelled, to: JobStatusOpen, want: false},
		{name: "accepted cannot reopen", from: JobStatusAccepted, to: JobStatusOpen, want: false},
		{name: "unknown from status", from: "BOGUS", to: JobStatusOpen, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanTransition_EveryStatusCanReachTerminal(t *testing.T) {
	// Every non-terminal status must have a path to CANCELLED so a job
	// can always be abandoned.
	for _, status := range []string{
		JobStatusOpen, JobStatusAccepted, JobStatusInProgress, JobStatusCompletionRequested,
	} {
		assert.True(t, CanTransition(status, JobStatusCancelled), "status %s cannot be cancelled", status)
	}
}

func TestValidStatus(t *testing.T) {
	for _, status := range []string{
		JobStatusOpen, JobStatusAccepted, JobStatusInProgress,
		JobStatusCompletionRequested, JobStatusCompleted, JobStatusCancelled,
	} {
		assert.True(t, ValidStatus(status), "status %s should be valid", status)
	}

	assert.False(t, ValidStatus(""))
	assert.False(t, ValidStatus("open"))
	assert.False(t, ValidStatus("DONE"))
}

func TestValidPaymentType(t *testing.T) {
	assert.True(t, ValidPaymentType(PaymentTypeFixed))
	assert.True(t, ValidPaymentType(PaymentTypeTip))
	assert.True(t, ValidPaymentType(PaymentTypeFree))
	assert.False(t, ValidPaymentType(""))
	assert.False(t, ValidPaymentType("fixed"))
	assert.False(t, ValidPaymentType("HOURLY"))
}

func TestJob_Terminal(t *testing.T) {
	job := &Job{Status: JobStatusInProgress}
	assert.False(t, job.Terminal())

	job.Status = JobStatusCompleted
	assert.True(t, job.Terminal())

	job.Status = JobStatusCancelled
	assert.True(t, job.Terminal())
}

func TestJob_ActorChecks(t *testing.T) {
	helperID := "helper-1"
	job := &Job{
		JobID:     "job-1",
		CreatorID: "creator-1",
		HelperID:  &helperID,
		CreatedAt: time.Now(),
	}

	assert.True(t, job.IsCreator("creator-1"))
	assert.False(t, job.IsCreator("helper-1"))

	assert.True(t, job.IsHelper("helper-1"))
	assert.False(t, job.IsHelper("creator-1"))

	job.HelperID = nil
	assert.False(t, job.IsHelper("helper-1"))
}
