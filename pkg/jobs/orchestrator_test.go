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

package jobs_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/httpexec"
	"github.com/jeremyhahn/go-manta/pkg/jobs"
	"github.com/jeremyhahn/go-manta/pkg/mantatest"
	"github.com/jeremyhahn/go-manta/pkg/signer"
	"github.com/jeremyhahn/go-manta/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, endpoint string, client *http.Client) *httpexec.Executor {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	sgn, err := signer.NewFromKey(mantatest.DefaultAccount, "", key)
	require.NoError(t, err)
	exec, err := httpexec.New(httpexec.Config{Endpoint: endpoint, Signer: sgn, Transport: client})
	require.NoError(t, err)
	return exec
}

func newOrchestrator(t *testing.T, opts ...mantatest.Option) (*jobs.Orchestrator, *mantatest.Server) {
	t.Helper()
	srv := mantatest.New(opts...)
	t.Cleanup(srv.Close)
	return jobs.New(newExecutor(t, srv.URL, srv.Client()), srv.Home(), nil), srv
}

func TestOrchestrator_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)

	id, err := o.Create(ctx, jobs.NewJob("count", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	job, err := o.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "count", job.Name)
	require.Len(t, job.Phases, 1)
	assert.Equal(t, jobs.MapPhase, job.Phases[0].Type)
	assert.Equal(t, "cat", job.Phases[0].Exec)
	assert.Equal(t, jobs.LifecycleInputOpen, job.Lifecycle())

	reqs := srv.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "application/json; type=job", reqs[0].Header.Get("Content-Type"))
}

func TestOrchestrator_CreateTwiceCreatesTwoJobs(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	job := jobs.NewJob("dup", jobs.NewMapPhase("cat"))

	a, err := o.Create(ctx, job)
	require.NoError(t, err)
	b, err := o.Create(ctx, job)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOrchestrator_CreateRejectsInvalidJob(t *testing.T) {
	o, srv := newOrchestrator(t)

	_, err := o.Create(context.Background(), jobs.NewJob("empty"))
	assert.ErrorIs(t, err, jobs.ErrInvalidJob)
	assert.Empty(t, srv.Requests())
}

func TestOrchestrator_CreateWithoutLocation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()
	o := jobs.New(newExecutor(t, ts.URL, ts.Client()), "/test", nil)

	_, err := o.Create(context.Background(), jobs.NewJob("x", jobs.NewMapPhase("cat")))
	assert.ErrorIs(t, err, jobs.ErrMissingLocation)
}

func TestOrchestrator_AddInputsSendsOneBody(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)
	id, err := o.Create(ctx, jobs.NewJob("in", jobs.NewMapPhase("cat")))
	require.NoError(t, err)

	inputs := []string{"~~/stor/a.txt", "/test/stor/b.txt", "/test/stor/c d.txt"}
	require.NoError(t, o.AddInputs(ctx, id, slices.Values(inputs)))

	assert.Equal(t, []string{"/test/stor/a.txt", "/test/stor/b.txt", "/test/stor/c d.txt"}, srv.JobInputs(id))
	assert.Equal(t, 1, srv.CountRequests(http.MethodPost, "/test/jobs/"+id.String()+"/live/in"))

	it, err := o.Inputs(ctx, id)
	require.NoError(t, err)
	got, err := stream.Collect(it)
	require.NoError(t, err)
	assert.Equal(t, srv.JobInputs(id), got)
}

func TestOrchestrator_AddInputsRejectsBadPath(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	id, err := o.Create(ctx, jobs.NewJob("in", jobs.NewMapPhase("cat")))
	require.NoError(t, err)

	err = o.AddInputs(ctx, id, slices.Values([]string{"/test/stor/ok", "/test/stor/bad\nname"}))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestOrchestrator_EndInputAndCancel(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)

	id, err := o.Create(ctx, jobs.NewJob("e", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	ok, err := o.EndInput(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	job, found := srv.Job(id)
	require.True(t, found)
	assert.Equal(t, jobs.LifecycleDone, job.Lifecycle())

	id2, err := o.Create(ctx, jobs.NewJob("c", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	ok, err = o.Cancel(ctx, id2)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := o.Get(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, jobs.LifecycleCancelled, got.Lifecycle())
}

func TestOrchestrator_AcceptedOnlyOn202(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
		err    bool
	}{
		{"accepted", http.StatusAccepted, true, false},
		{"no content", http.StatusNoContent, false, false},
		{"ok", http.StatusOK, false, false},
		{"conflict", http.StatusConflict, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()
			o := jobs.New(newExecutor(t, ts.URL, ts.Client()), "/test", nil)

			for _, call := range []func(context.Context, uuid.UUID) (bool, error){o.EndInput, o.Cancel} {
				ok, err := call(context.Background(), uuid.New())
				if tt.err {
					assert.Error(t, err)
					continue
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, ok)
			}
		})
	}
}

func TestOrchestrator_NilID(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)

	_, err := o.Get(ctx, uuid.Nil)
	assert.ErrorIs(t, err, jobs.ErrInvalidJobID)
	_, err = o.EndInput(ctx, uuid.Nil)
	assert.ErrorIs(t, err, jobs.ErrInvalidJobID)
	_, err = o.Outputs(ctx, uuid.Nil)
	assert.ErrorIs(t, err, jobs.ErrInvalidJobID)
	assert.ErrorIs(t, o.AddInputs(ctx, uuid.Nil, slices.Values([]string{"/x"})), jobs.ErrInvalidJobID)
	assert.Empty(t, srv.Requests())
}

func TestOrchestrator_GetFallsBackToArchive(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)

	id, err := o.Create(ctx, jobs.NewJob("arch", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	_, err = o.EndInput(ctx, id)
	require.NoError(t, err)
	require.NoError(t, srv.ArchiveJob(id))
	srv.ResetRequests()

	job, err := o.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateDone, job.State)
	assert.Equal(t, "arch", job.Name)

	base := "/test/jobs/" + id.String()
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet, base+"/live/status"))
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet, base+"/job.json"))
}

func TestOrchestrator_GetDoesNotFallBackOnOtherErrors(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)

	id, err := o.Create(ctx, jobs.NewJob("live", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	base := "/test/jobs/" + id.String()
	srv.ResetRequests()

	srv.Fail(http.MethodGet, base+"/live/status", http.StatusServiceUnavailable, "ServiceUnavailable")
	_, err = o.Get(ctx, id)
	require.Error(t, err)
	assert.True(t, common.IsServiceCode(err, common.CodeServiceUnavailable))
	assert.Equal(t, 0, srv.CountRequests(http.MethodGet, base+"/job.json"))

	srv.Fail(http.MethodGet, base+"/live/status", http.StatusNotFound, "ResourceNotFound")
	_, err = o.Get(ctx, id)
	assert.True(t, common.IsNotFound(err))
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet, base+"/job.json"))
}

func TestOrchestrator_GetFallsBackOnCanonicalNotFoundCode(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)

	id, err := o.Create(ctx, jobs.NewJob("live", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	base := "/test/jobs/" + id.String()
	srv.ResetRequests()

	srv.Fail(http.MethodGet, base+"/live/status", http.StatusNotFound, string(common.CodeResourceNotFound))
	_, err = o.Get(ctx, id)
	assert.True(t, common.IsNotFound(err))
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet, base+"/job.json"))
}

func TestOrchestrator_OutputsFailuresErrors(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)
	_, err := srv.Store().Put("/test/stor/words", []byte("one\ntwo\n"), "text/plain", "", nil, 0)
	require.NoError(t, err)

	id, err := o.Create(ctx, jobs.NewJob("wc", jobs.NewMapPhase("wc -l")))
	require.NoError(t, err)
	require.NoError(t, o.AddInputs(ctx, id, slices.Values([]string{"~~/stor/words", "~~/stor/absent"})))
	_, err = o.EndInput(ctx, id)
	require.NoError(t, err)

	it, err := o.Outputs(ctx, id)
	require.NoError(t, err)
	outputs, err := stream.Collect(it)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	data, ok := srv.Store().Data(outputs[0])
	require.True(t, ok)
	assert.Equal(t, "2\n", string(data))

	fit, err := o.Failures(ctx, id)
	require.NoError(t, err)
	failures, err := stream.Collect(fit)
	require.NoError(t, err)
	assert.Equal(t, []string{"/test/stor/absent"}, failures)

	eit, err := o.Errors(ctx, id)
	require.NoError(t, err)
	errs, err := stream.Collect(eit)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "ResourceNotFoundError", errs[0].Code)
	assert.Equal(t, "/test/stor/absent", errs[0].Input)
}

func TestOrchestrator_ListJobIDsSkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	o, srv := newOrchestrator(t)

	a, err := o.Create(ctx, jobs.NewJob("a", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	b, err := o.Create(ctx, jobs.NewJob("b", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	srv.AddIndexLine("not json")
	srv.AddIndexLine(`{"name":"reports","type":"directory"}`)

	it, err := o.ListJobIDs(ctx, jobs.AllJobs)
	require.NoError(t, err)
	ids, err := stream.Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
}

func TestOrchestrator_ListJobsByStateAndName(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	running, err := o.Create(ctx, jobs.NewJob("keep", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	done, err := o.Create(ctx, jobs.NewJob("finish", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	_, err = o.EndInput(ctx, done)
	require.NoError(t, err)

	it, err := o.ListJobs(ctx, jobs.RunningJobs)
	require.NoError(t, err)
	list, err := stream.Collect(it)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, running, list[0].ID)

	idIt, err := o.ListJobIDsByName(ctx, "finish")
	require.NoError(t, err)
	ids, err := stream.Collect(idIt)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{done}, ids)

	_, err = o.ListJobIDsByName(ctx, "")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}
