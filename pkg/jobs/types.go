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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PhaseType is the kind of a job phase.
type PhaseType string

const (
	MapPhase    PhaseType = "map"
	ReducePhase PhaseType = "reduce"
)

// Phase is one stage of a job.
type Phase struct {
	Type   PhaseType `json:"type"`
	Exec   string    `json:"exec"`
	Init   string    `json:"init,omitempty"`
	Count  *int      `json:"count,omitempty"`
	Memory *int      `json:"memory,omitempty"`
	Disk   *int      `json:"disk,omitempty"`
	Assets []string  `json:"assets,omitempty"`
}

// NewMapPhase returns a map phase running exec.
func NewMapPhase(exec string) Phase {
	return Phase{Type: MapPhase, Exec: exec}
}

// NewReducePhase returns a reduce phase running exec.
func NewReducePhase(exec string) Phase {
	return Phase{Type: ReducePhase, Exec: exec}
}

// Validate checks the phase before submission.
func (p Phase) Validate() error {
	switch p.Type {
	case MapPhase, ReducePhase:
	default:
		return fmt.Errorf("%w: unknown phase type %q", ErrInvalidJob, p.Type)
	}
	if p.Exec == "" {
		return fmt.Errorf("%w: phase exec is required", ErrInvalidJob)
	}
	if p.Count != nil && *p.Count < 1 {
		return fmt.Errorf("%w: phase count must be positive", ErrInvalidJob)
	}
	if p.Memory != nil && *p.Memory < 1 {
		return fmt.Errorf("%w: phase memory must be positive", ErrInvalidJob)
	}
	if p.Disk != nil && *p.Disk < 1 {
		return fmt.Errorf("%w: phase disk must be positive", ErrInvalidJob)
	}
	return nil
}

// State is the service reported job state.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
)

// Lifecycle is the client side view of where a job is.
type Lifecycle string

const (
	LifecycleCreated     Lifecycle = "CREATED"
	LifecycleInputOpen   Lifecycle = "INPUT_OPEN"
	LifecycleInputClosed Lifecycle = "INPUT_CLOSED"
	LifecycleRunning     Lifecycle = "RUNNING"
	LifecycleDone        Lifecycle = "DONE"
	LifecycleCancelled   Lifecycle = "CANCELLED"
)

// Stats are the task counters reported for a job.
type Stats struct {
	Errors    int `json:"errors"`
	Outputs   int `json:"outputs"`
	Retries   int `json:"retries"`
	Tasks     int `json:"tasks"`
	TasksDone int `json:"tasksDone"`
}

// Job is a compute job as described by the service.
type Job struct {
	ID          uuid.UUID `json:"id,omitzero"`
	Name        string    `json:"name"`
	Phases      []Phase   `json:"phases"`
	State       State     `json:"state,omitempty"`
	Cancelled   bool      `json:"cancelled,omitempty"`
	InputDone   bool      `json:"inputDone,omitempty"`
	Stats       *Stats    `json:"stats,omitempty"`
	TimeCreated time.Time `json:"timeCreated,omitzero"`
	TimeDone    time.Time `json:"timeDone,omitzero"`
}

// NewJob returns a job description ready for Create.
func NewJob(name string, phases ...Phase) *Job {
	return &Job{Name: name, Phases: phases}
}

// Validate checks the description before submission.
func (j *Job) Validate() error {
	if j == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}
	if len(j.Phases) == 0 {
		return fmt.Errorf("%w: at least one phase is required", ErrInvalidJob)
	}
	for i, p := range j.Phases {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("phase %d: %w", i, err)
		}
	}
	return nil
}

// Lifecycle derives the lifecycle stage from the reported state.
func (j *Job) Lifecycle() Lifecycle {
	switch {
	case j.Cancelled:
		return LifecycleCancelled
	case j.State == StateDone:
		return LifecycleDone
	case j.InputDone && j.State == StateRunning:
		return LifecycleRunning
	case j.InputDone:
		return LifecycleInputClosed
	case j.State == StateRunning:
		return LifecycleInputOpen
	default:
		return LifecycleCreated
	}
}

// Finished reports whether the job will make no further progress.
func (j *Job) Finished() bool {
	return j.State == StateDone || j.Cancelled
}

// StateFilter restricts job listings.
type StateFilter string

const (
	AllJobs     StateFilter = ""
	RunningJobs StateFilter = "running"
	DoneJobs    StateFilter = "done"
)

// JobError describes a task failure.
type JobError struct {
	Phase   string `json:"phase"`
	What    string `json:"what"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Stderr  string `json:"stderr,omitempty"`
	Key     string `json:"key,omitempty"`
	Input   string `json:"input,omitempty"`
	P0Input string `json:"p0input,omitempty"`
}

func (e *JobError) Error() string {
	return fmt.Sprintf("phase %s: %s: %s", e.Phase, e.Code, e.Message)
}
