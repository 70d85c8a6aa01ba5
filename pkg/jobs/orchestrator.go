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

// Package jobs submits compute jobs, feeds them inputs and enumerates
// their results. Nothing is cached: every call asks the service.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/httpexec"
	"github.com/jeremyhahn/go-manta/pkg/stream"
)

const (
	jobContentType   = "application/json; type=job"
	inputContentType = "text/plain; charset=utf-8"
)

// Executor issues requests on behalf of the orchestrator.
type Executor interface {
	Execute(ctx context.Context, method, path string, opts ...httpexec.Option) (*httpexec.Response, error)
}

// Orchestrator manages jobs under an account's home directory. It is safe
// for concurrent use.
type Orchestrator struct {
	exec   Executor
	home   string
	logger adapters.Logger
}

// New returns an orchestrator for the account whose home is home, e.g.
// "/alice".
func New(exec Executor, home string, logger adapters.Logger) *Orchestrator {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &Orchestrator{
		exec:   exec,
		home:   common.NormalizePath(home),
		logger: logger,
	}
}

func (o *Orchestrator) jobsPath() string {
	return common.JoinPath(o.home, "jobs")
}

func (o *Orchestrator) jobPath(id uuid.UUID, parts ...string) string {
	p := common.JoinPath(o.jobsPath(), id.String())
	for _, part := range parts {
		p = common.JoinPath(p, part)
	}
	return p
}

// Create submits job and returns the identifier assigned by the service.
// Calling Create twice creates two jobs.
func (o *Orchestrator) Create(ctx context.Context, job *Job) (uuid.UUID, error) {
	if err := job.Validate(); err != nil {
		return uuid.Nil, err
	}
	body, err := json.Marshal(struct {
		Name   string  `json:"name"`
		Phases []Phase `json:"phases"`
	}{job.Name, job.Phases})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	resp, err := o.exec.Execute(ctx, http.MethodPost, o.jobsPath(),
		httpexec.WithBytes(body, jobContentType))
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = resp.Close() }()

	location := resp.Header.Get(common.HeaderLocation)
	if location == "" {
		return uuid.Nil, ErrMissingLocation
	}
	id, err := uuid.Parse(common.LastSegment(location))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrMissingLocation, location)
	}
	o.logger.Info(ctx, "job created", adapters.String("job_id", id.String()), adapters.String("name", job.Name))
	return id, nil
}

// AddInputs streams the paths in inputs to the job as one newline
// delimited body. The sequence is consumed as the body is written.
// Inputs sent before a failure are not withdrawn.
func (o *Orchestrator) AddInputs(ctx context.Context, id uuid.UUID, inputs iter.Seq[string]) error {
	if id == uuid.Nil {
		return ErrInvalidJobID
	}
	body := newInputReader(inputs, o.home)
	defer func() { _ = body.Close() }()

	resp, err := o.exec.Execute(ctx, http.MethodPost, o.jobPath(id, "live", "in"),
		httpexec.WithHeader(common.HeaderContentType, inputContentType),
		httpexec.WithBody(body, -1))
	if ierr := body.Err(); ierr != nil {
		if resp != nil {
			_ = resp.Close()
		}
		return ierr
	}
	if err != nil {
		return err
	}
	o.logger.Debug(ctx, "job inputs added",
		adapters.String("job_id", id.String()),
		adapters.Int("count", body.Count()))
	return resp.Close()
}

// Inputs lists the inputs submitted to the job.
func (o *Orchestrator) Inputs(ctx context.Context, id uuid.UUID) (stream.Iterator[string], error) {
	return o.lines(ctx, id, "in")
}

// EndInput closes the job's input. It reports whether the service
// accepted the request (202); other success statuses return false.
func (o *Orchestrator) EndInput(ctx context.Context, id uuid.UUID) (bool, error) {
	return o.accepted(ctx, id, "live", "in", "end")
}

// Cancel asks the service to cancel the job. The job may still finish.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return o.accepted(ctx, id, "live", "cancel")
}

func (o *Orchestrator) accepted(ctx context.Context, id uuid.UUID, parts ...string) (bool, error) {
	if id == uuid.Nil {
		return false, ErrInvalidJobID
	}
	resp, err := o.exec.Execute(ctx, http.MethodPost, o.jobPath(id, parts...))
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Close() }()
	return resp.StatusCode == http.StatusAccepted, nil
}

// Get fetches the job's current status. Jobs move from the live resource
// to an archived record after they finish, so a not-found answer from the
// live resource is retried once against the archive.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidJobID
	}
	job, err := o.fetchJob(ctx, o.jobPath(id, "live", "status"))
	if err == nil {
		return job, nil
	}
	if !common.IsNotFound(err) {
		return nil, err
	}
	o.logger.Debug(ctx, "job not live, reading archive", adapters.String("job_id", id.String()))
	return o.fetchJob(ctx, o.jobPath(id, "job.json"))
}

func (o *Orchestrator) fetchJob(ctx context.Context, path string) (*Job, error) {
	resp, err := o.exec.Execute(ctx, http.MethodGet, path,
		httpexec.WithHeader("Accept", "application/json"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Close() }()

	var job Job
	if err := json.NewDecoder(resp).Decode(&job); err != nil {
		return nil, &common.DecodeError{Path: path, Err: err}
	}
	return &job, nil
}

// ListJobIDs lists job identifiers, optionally restricted to a state.
// Index lines that are malformed or do not name a job are skipped.
func (o *Orchestrator) ListJobIDs(ctx context.Context, filter StateFilter) (stream.Iterator[uuid.UUID], error) {
	var opts []httpexec.Option
	if filter != AllJobs {
		opts = append(opts, httpexec.WithQuery("state", string(filter)))
	}
	return o.index(ctx, opts...)
}

// ListJobIDsByName lists the identifiers of jobs with the given name.
func (o *Orchestrator) ListJobIDsByName(ctx context.Context, name string) (stream.Iterator[uuid.UUID], error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrInvalidArgument)
	}
	return o.index(ctx, httpexec.WithQuery("name", name))
}

// ListJobs lists jobs, fetching each one's status as the sequence is
// consumed.
func (o *Orchestrator) ListJobs(ctx context.Context, filter StateFilter) (stream.Iterator[*Job], error) {
	ids, err := o.ListJobIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return stream.Map(ids, func(id uuid.UUID) (*Job, error) {
		return o.Get(ctx, id)
	}), nil
}

func (o *Orchestrator) index(ctx context.Context, opts ...httpexec.Option) (stream.Iterator[uuid.UUID], error) {
	resp, err := o.exec.Execute(ctx, http.MethodGet, o.jobsPath(), opts...)
	if err != nil {
		return nil, err
	}
	return stream.NewLineIterator(o.jobsPath(), resp, decodeIndexEntry), nil
}

// decodeIndexEntry reads the job id from an index line. Anything that is
// not a well formed entry is skipped rather than failing the listing.
func decodeIndexEntry(line []byte) (uuid.UUID, bool, error) {
	var entry struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(line, &entry); err != nil {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(entry.Name)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// Outputs lists the objects produced by the job.
func (o *Orchestrator) Outputs(ctx context.Context, id uuid.UUID) (stream.Iterator[string], error) {
	return o.lines(ctx, id, "out")
}

// Failures lists the inputs whose processing failed.
func (o *Orchestrator) Failures(ctx context.Context, id uuid.UUID) (stream.Iterator[string], error) {
	return o.lines(ctx, id, "fail")
}

// Errors lists the task errors reported for the job. Records are decoded
// strictly.
func (o *Orchestrator) Errors(ctx context.Context, id uuid.UUID) (stream.Iterator[*JobError], error) {
	if id == uuid.Nil {
		return nil, ErrInvalidJobID
	}
	path := o.jobPath(id, "live", "err")
	resp, err := o.exec.Execute(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	return stream.NewLineIterator(path, resp, stream.JSON[*JobError]()), nil
}

func (o *Orchestrator) lines(ctx context.Context, id uuid.UUID, resource string) (stream.Iterator[string], error) {
	if id == uuid.Nil {
		return nil, ErrInvalidJobID
	}
	path := o.jobPath(id, "live", resource)
	resp, err := o.exec.Execute(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	return stream.NewLineIterator(path, resp, stream.Lines), nil
}

// inputReader renders a sequence of paths as newline delimited text. The
// transport may read from its own goroutine while the caller closes, so
// access is serialized.
type inputReader struct {
	mu      sync.Mutex
	next    func() (string, bool)
	stop    func()
	home    string
	pending []byte
	count   int
	err     error
	done    bool
}

func newInputReader(inputs iter.Seq[string], home string) *inputReader {
	next, stop := iter.Pull(inputs)
	return &inputReader{next: next, stop: stop, home: home}
}

func (r *inputReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.pending) == 0 {
		if r.done {
			if r.err != nil {
				return 0, r.err
			}
			return 0, io.EOF
		}
		input, ok := r.next()
		if !ok {
			r.finish()
			continue
		}
		input = common.ExpandHome(input, r.home)
		if err := common.ValidatePath(input); err != nil {
			r.err = fmt.Errorf("input %d: %w", r.count+1, err)
			r.finish()
			continue
		}
		r.count++
		r.pending = append(append(r.pending, input...), '\n')
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *inputReader) finish() {
	if !r.done {
		r.done = true
		r.stop()
	}
}

// Close stops the underlying sequence.
func (r *inputReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finish()
	r.pending = nil
	return nil
}

// Err returns the validation failure that ended the body, if any.
func (r *inputReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Count returns the number of inputs written so far.
func (r *inputReader) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
