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

package mantatest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/jobs"
)

const jobContentType = "application/json; type=job"

// TaskFunc runs one phase over one input and returns the task output.
type TaskFunc func(phase jobs.Phase, input []byte) ([]byte, error)

// CatTask understands "cat" and "wc -l".
func CatTask(phase jobs.Phase, input []byte) ([]byte, error) {
	switch strings.Join(strings.Fields(phase.Exec), " ") {
	case "cat":
		return input, nil
	case "wc -l":
		return []byte(strconv.Itoa(bytes.Count(input, []byte("\n"))) + "\n"), nil
	}
	return nil, fmt.Errorf("%s: command not found", phase.Exec)
}

type fakeJob struct {
	account  string
	job      jobs.Job
	inputs   []string
	outputs  []string
	failures []string
	errs     []jobs.JobError
	archived bool
}

type jobTable struct {
	mu    sync.Mutex
	order []uuid.UUID
	byID  map[uuid.UUID]*fakeJob
	noise []string
}

func newJobTable() *jobTable {
	return &jobTable{byID: make(map[uuid.UUID]*fakeJob)}
}

// Job returns a snapshot of the job as the service reports it.
func (s *Server) Job(id uuid.UUID) (jobs.Job, bool) {
	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()
	fj, ok := s.jobs.byID[id]
	if !ok {
		return jobs.Job{}, false
	}
	return fj.job, true
}

// JobInputs returns the inputs received for the job.
func (s *Server) JobInputs(id uuid.UUID) []string {
	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()
	if fj, ok := s.jobs.byID[id]; ok {
		return append([]string(nil), fj.inputs...)
	}
	return nil
}

// ArchiveJob retires the live resources of a job so that only job.json
// remains readable.
func (s *Server) ArchiveJob(id uuid.UUID) error {
	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()
	fj, ok := s.jobs.byID[id]
	if !ok {
		return fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	fj.archived = true
	return nil
}

// AddIndexLine appends a raw line to every job index response.
func (s *Server) AddIndexLine(line string) {
	s.jobs.mu.Lock()
	s.jobs.noise = append(s.jobs.noise, line)
	s.jobs.mu.Unlock()
}

// serveJobResource answers reads under {account}/jobs. It reports false for
// paths that belong to the object store.
func (s *Server) serveJobResource(c *gin.Context, p string) bool {
	segs := common.Segments(p)
	if len(segs) < 2 || segs[1] != "jobs" {
		return false
	}
	switch {
	case len(segs) == 2:
		s.serveJobIndex(c, segs[0])
		return true
	case len(segs) == 4 && segs[3] == "job.json":
	case len(segs) == 5 && segs[3] == "live":
	default:
		return false
	}

	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()
	fj := s.lookupJob(segs[0], segs[2])
	if fj == nil {
		respondError(c, http.StatusNotFound, "ResourceNotFound", p+" was not found")
		return true
	}
	if segs[3] == "job.json" {
		if !fj.archived {
			respondError(c, http.StatusNotFound, "ResourceNotFound", p+" was not found")
			return true
		}
		c.JSON(http.StatusOK, fj.job)
		return true
	}
	if fj.archived {
		respondError(c, http.StatusNotFound, "ResourceNotFound", p+" was not found")
		return true
	}

	switch segs[4] {
	case "status":
		c.JSON(http.StatusOK, fj.job)
	case "in":
		writeLines(c, fj.inputs)
	case "out":
		writeLines(c, fj.outputs)
	case "fail":
		writeLines(c, fj.failures)
	case "err":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for i := range fj.errs {
			_ = enc.Encode(&fj.errs[i])
		}
		c.Data(http.StatusOK, "application/x-json-stream; type=job-error", buf.Bytes())
	default:
		respondError(c, http.StatusNotFound, "ResourceNotFound", p+" was not found")
	}
	return true
}

func (s *Server) lookupJob(account, rawID string) *fakeJob {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil
	}
	fj, ok := s.jobs.byID[id]
	if !ok || fj.account != account {
		return nil
	}
	return fj
}

func writeLines(c *gin.Context, lines []string) {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	c.Data(http.StatusOK, "text/plain", buf.Bytes())
}

// serveJobIndex lists job ids as directory entries, filtered by the state
// and name query parameters.
func (s *Server) serveJobIndex(c *gin.Context, account string) {
	state := c.Query("state")
	name := c.Query("name")

	s.jobs.mu.Lock()
	var entries []*common.ObjectMetadata
	for _, id := range s.jobs.order {
		fj := s.jobs.byID[id]
		if fj.account != account {
			continue
		}
		if state != "" && string(fj.job.State) != state {
			continue
		}
		if name != "" && fj.job.Name != name {
			continue
		}
		entries = append(entries, &common.ObjectMetadata{
			Path:         common.JoinPath("/"+account+"/jobs", id.String()),
			Type:         common.TypeDirectory,
			LastModified: fj.job.TimeCreated,
		})
	}
	noise := append([]string(nil), s.jobs.noise...)
	s.jobs.mu.Unlock()

	body, err := listingBody(entries)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	for _, line := range noise {
		body = append(body, line+"\n"...)
	}
	c.Header(common.HeaderResultSetSize, strconv.Itoa(len(entries)))
	if c.Request.Method == http.MethodHead {
		c.Header(common.HeaderContentType, common.DirectoryContentType)
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, common.DirectoryContentType, body)
}

// postJob handles job creation and the live job controls.
func (s *Server) postJob(c *gin.Context) {
	p := common.NormalizePath(c.Request.URL.Path)
	segs := common.Segments(p)
	switch {
	case len(segs) == 2 && segs[1] == "jobs":
		s.createJob(c, segs[0])
		return
	case len(segs) >= 5 && segs[1] == "jobs" && segs[3] == "live":
	default:
		respondError(c, http.StatusMethodNotAllowed, "BadMethod", "POST is not supported on "+p)
		return
	}

	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()
	fj := s.lookupJob(segs[0], segs[2])
	if fj == nil || fj.archived {
		respondError(c, http.StatusNotFound, "ResourceNotFound", p+" was not found")
		return
	}

	switch strings.Join(segs[4:], "/") {
	case "in":
		if fj.job.InputDone || fj.job.Cancelled {
			respondError(c, http.StatusConflict, "InvalidJobState", "job input is closed")
			return
		}
		sc := bufio.NewScanner(c.Request.Body)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				fj.inputs = append(fj.inputs, line)
			}
		}
		if err := sc.Err(); err != nil {
			respondError(c, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
		c.Status(http.StatusNoContent)
	case "in/end":
		if !fj.job.InputDone && !fj.job.Cancelled {
			fj.job.InputDone = true
			s.runJob(segs[2], fj)
		}
		c.Status(http.StatusAccepted)
	case "cancel":
		if fj.job.State == jobs.StateDone && !fj.job.Cancelled {
			respondError(c, http.StatusConflict, "InvalidJobState", "job is already done")
			return
		}
		fj.job.Cancelled = true
		s.finishJob(fj)
		c.Status(http.StatusAccepted)
	default:
		respondError(c, http.StatusNotFound, "ResourceNotFound", p+" was not found")
	}
}

func (s *Server) createJob(c *gin.Context, account string) {
	if ct := c.GetHeader(common.HeaderContentType); ct != "" && ct != jobContentType {
		respondError(c, http.StatusUnsupportedMediaType, "InvalidArgument", "unexpected content type "+ct)
		return
	}
	var req jobs.Job
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respondError(c, http.StatusBadRequest, "InvalidArgument", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "InvalidArgument", err.Error())
		return
	}

	id := uuid.New()
	fj := &fakeJob{
		account: account,
		job: jobs.Job{
			ID:          id,
			Name:        req.Name,
			Phases:      req.Phases,
			State:       jobs.StateRunning,
			Stats:       &jobs.Stats{},
			TimeCreated: s.now().UTC(),
		},
	}
	s.jobs.mu.Lock()
	s.jobs.byID[id] = fj
	s.jobs.order = append(s.jobs.order, id)
	s.jobs.mu.Unlock()

	c.Header(common.HeaderLocation, common.JoinPath("/"+account+"/jobs", id.String()))
	c.Status(http.StatusCreated)
}

// task is one unit of work flowing through the phases.
type task struct {
	key  string
	p0   string
	data []byte
}

// runJob executes every phase synchronously. The caller holds s.jobs.mu.
func (s *Server) runJob(id string, fj *fakeJob) {
	var items []task
	for _, in := range fj.inputs {
		data, ok := s.store.Data(in)
		if !ok {
			fj.fail(0, in, in, "ResourceNotFoundError", "no such object: "+in)
			continue
		}
		items = append(items, task{key: in, p0: in, data: data})
	}

	for i, phase := range fj.job.Phases {
		if phase.Type == jobs.ReducePhase {
			var buf bytes.Buffer
			for _, it := range items {
				buf.Write(it.data)
			}
			items = []task{{key: "reduce", data: buf.Bytes()}}
		}
		next := make([]task, 0, len(items))
		for _, it := range items {
			fj.job.Stats.Tasks++
			out, err := s.task(phase, it.data)
			if err != nil {
				fj.fail(i, it.key, it.p0, "UserTaskError", err.Error())
				continue
			}
			fj.job.Stats.TasksDone++
			next = append(next, task{key: it.key, p0: it.p0, data: out})
		}
		items = next
	}

	last := len(fj.job.Phases) - 1
	for _, it := range items {
		out := fmt.Sprintf("/%s/jobs/%s/stor/%s.%d.%s", fj.account, id, strings.TrimPrefix(it.key, "/"), last, uuid.NewString())
		if err := s.store.MkdirAll(common.ParentPath(out)); err != nil {
			fj.fail(last, it.key, it.p0, "InternalError", err.Error())
			continue
		}
		if _, err := s.store.Put(out, it.data, "text/plain", "", nil, 1); err != nil {
			fj.fail(last, it.key, it.p0, "InternalError", err.Error())
			continue
		}
		fj.outputs = append(fj.outputs, out)
	}
	fj.job.Stats.Outputs = len(fj.outputs)
	s.finishJob(fj)
}

func (s *Server) finishJob(fj *fakeJob) {
	fj.job.State = jobs.StateDone
	fj.job.TimeDone = s.now().UTC()
	if s.autoArchive {
		fj.archived = true
	}
}

func (fj *fakeJob) fail(phase int, key, p0, code, message string) {
	fj.failures = append(fj.failures, key)
	fj.errs = append(fj.errs, jobs.JobError{
		Phase:   strconv.Itoa(phase),
		What:    fmt.Sprintf("phase %d: input %q", phase, key),
		Code:    code,
		Message: message,
		Input:   key,
		P0Input: p0,
	})
	fj.job.Stats.Errors++
}
