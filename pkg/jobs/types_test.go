// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package jobs

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestPhase_Validate(t *testing.T) {
	tests := []struct {
		name    string
		phase   Phase
		wantErr bool
	}{
		{"map", NewMapPhase("cat"), false},
		{"reduce", NewReducePhase("wc -l"), false},
		{"unknown type", Phase{Type: "shuffle", Exec: "cat"}, true},
		{"no exec", Phase{Type: MapPhase}, true},
		{"zero count", Phase{Type: MapPhase, Exec: "cat", Count: intPtr(0)}, true},
		{"negative memory", Phase{Type: MapPhase, Exec: "cat", Memory: intPtr(-1)}, true},
		{"zero disk", Phase{Type: MapPhase, Exec: "cat", Disk: intPtr(0)}, true},
		{"sized", Phase{Type: ReducePhase, Exec: "cat", Count: intPtr(2), Memory: intPtr(512), Disk: intPtr(8)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.phase.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJob)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJob_Validate(t *testing.T) {
	var nilJob *Job
	assert.ErrorIs(t, nilJob.Validate(), ErrInvalidJob)
	assert.ErrorIs(t, NewJob("empty").Validate(), ErrInvalidJob)
	assert.ErrorIs(t, NewJob("bad", NewMapPhase("cat"), Phase{Type: MapPhase}).Validate(), ErrInvalidJob)
	assert.NoError(t, NewJob("ok", NewMapPhase("cat")).Validate())
}

func TestJob_Lifecycle(t *testing.T) {
	tests := []struct {
		job  Job
		want Lifecycle
	}{
		{Job{}, LifecycleCreated},
		{Job{State: StateQueued}, LifecycleCreated},
		{Job{State: StateRunning}, LifecycleInputOpen},
		{Job{State: StateQueued, InputDone: true}, LifecycleInputClosed},
		{Job{State: StateRunning, InputDone: true}, LifecycleRunning},
		{Job{State: StateDone, InputDone: true}, LifecycleDone},
		{Job{State: StateDone, Cancelled: true}, LifecycleCancelled},
		{Job{State: StateRunning, Cancelled: true}, LifecycleCancelled},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.job.Lifecycle())
		})
	}
}

func TestJob_Finished(t *testing.T) {
	assert.False(t, (&Job{State: StateRunning}).Finished())
	assert.True(t, (&Job{State: StateDone}).Finished())
	assert.True(t, (&Job{State: StateRunning, Cancelled: true}).Finished())
}

func TestJob_JSON(t *testing.T) {
	id := uuid.MustParse("0c5b1f3a-1111-4222-8333-944455556666")
	raw := `{
		"id": "0c5b1f3a-1111-4222-8333-944455556666",
		"name": "wordcount",
		"state": "running",
		"cancelled": false,
		"inputDone": true,
		"phases": [{"type": "map", "exec": "wc", "count": 2}],
		"stats": {"errors": 1, "outputs": 3, "retries": 0, "tasks": 4, "tasksDone": 3},
		"timeCreated": "2025-03-01T10:00:00.123Z"
	}`

	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "wordcount", job.Name)
	assert.Equal(t, LifecycleRunning, job.Lifecycle())
	require.Len(t, job.Phases, 1)
	assert.Equal(t, 2, *job.Phases[0].Count)
	assert.Equal(t, 3, job.Stats.TasksDone)
	assert.True(t, job.TimeDone.IsZero())

	out, err := json.Marshal(NewJob("n", NewMapPhase("cat")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"n","phases":[{"type":"map","exec":"cat"}]}`, string(out))
}

func TestJobError_Error(t *testing.T) {
	e := &JobError{Phase: "1", Code: "UserTaskError", Message: "exit 1"}
	assert.Equal(t, "phase 1: UserTaskError: exit 1", e.Error())
}
