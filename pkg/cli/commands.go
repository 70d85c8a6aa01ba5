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

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/config"
	"github.com/jeremyhahn/go-manta/pkg/jobs"
	"github.com/jeremyhahn/go-manta/pkg/manta"
	"github.com/jeremyhahn/go-manta/pkg/stream"
)

// CommandContext holds the context for executing commands.
type CommandContext struct {
	Client *manta.Client
	Config *config.Config
	Stdin  io.Reader
	Stdout io.Writer
}

// NewCommandContext validates cfg and creates a client from it.
func NewCommandContext(cfg *config.Config) (*CommandContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return nil, err
	}
	client, err := manta.New(cfg.ClientConfig(logger))
	if err != nil {
		return nil, err
	}
	return NewCommandContextWithClient(client, cfg), nil
}

// NewCommandContextWithClient wraps an existing client.
func NewCommandContextWithClient(client *manta.Client, cfg *config.Config) *CommandContext {
	return &CommandContext{
		Client: client,
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
}

// Close closes the command context and cleans up resources.
func (ctx *CommandContext) Close() error {
	return ctx.Client.Close()
}

// Format returns the configured output format.
func (ctx *CommandContext) Format() OutputFormat {
	if ctx.Config == nil || ctx.Config.OutputFormat == "" {
		return FormatText
	}
	return OutputFormat(ctx.Config.OutputFormat)
}

// PutOptions are the optional settings of an upload.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	Durability  int

	// Parents creates missing parent directories first.
	Parents bool
}

// PutCommand uploads a local file. If filePath is empty or "-", reads from
// stdin.
func (ctx *CommandContext) PutCommand(c context.Context, filePath, remote string, opts PutOptions) (*common.ObjectMetadata, error) {
	var reader io.Reader
	size := int64(-1)

	if filePath == "" || filePath == "-" {
		reader = ctx.Stdin
	} else {
		file, err := os.Open(filePath) // #nosec G304 -- User-provided path for CLI file operations, intended behavior
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		info, err := file.Stat()
		if err != nil {
			return nil, err
		}
		reader = file
		size = info.Size()
	}

	var putOpts []manta.PutOption
	if opts.ContentType != "" {
		putOpts = append(putOpts, manta.WithContentType(opts.ContentType))
	}
	if len(opts.Metadata) > 0 {
		md := common.Metadata{}
		for k, v := range opts.Metadata {
			md.Set(k, v)
		}
		putOpts = append(putOpts, manta.WithMetadata(md))
	}
	if opts.Durability > 0 {
		putOpts = append(putOpts, manta.WithDurability(opts.Durability))
	}

	if opts.Parents {
		if err := ctx.Client.PutDirectories(c, common.ParentPath(common.ExpandHome(remote, ctx.Client.Home()))); err != nil {
			return nil, err
		}
	}
	return ctx.Client.Put(c, remote, reader, size, putOpts...)
}

// GetCommand downloads an object. An empty outputPath or "-" writes to
// stdout.
func (ctx *CommandContext) GetCommand(c context.Context, remote, outputPath string) error {
	reader, err := ctx.Client.GetReader(c, remote)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	var writer io.Writer
	if outputPath == "" || outputPath == "-" {
		writer = ctx.Stdout
	} else {
		file, err := os.Create(outputPath) // #nosec G304 -- User-provided path for CLI file operations, intended behavior
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		writer = file
	}

	_, err = io.Copy(writer, reader)
	return err
}

// HeadCommand returns the metadata of an object or directory.
func (ctx *CommandContext) HeadCommand(c context.Context, remote string) (*common.ObjectMetadata, error) {
	return ctx.Client.Head(c, remote)
}

// ListCommand lists a directory.
func (ctx *CommandContext) ListCommand(c context.Context, dir string) ([]ObjectInfo, error) {
	entries, err := ctx.Client.ListAll(c, dir)
	if err != nil {
		return nil, err
	}
	return ToObjectInfo(entries), nil
}

// MkdirCommand creates a directory, and with parents its missing ancestors.
func (ctx *CommandContext) MkdirCommand(c context.Context, dir string, parents bool) error {
	if parents {
		return ctx.Client.PutDirectories(c, dir)
	}
	return ctx.Client.PutDirectory(c, dir)
}

// RemoveCommand deletes a path, and with recursive everything below it.
func (ctx *CommandContext) RemoveCommand(c context.Context, p string, recursive bool) error {
	if recursive {
		return ctx.Client.DeleteRecursive(c, p)
	}
	return ctx.Client.Delete(c, p)
}

// LinkCommand creates a snaplink.
func (ctx *CommandContext) LinkCommand(c context.Context, source, link string) error {
	return ctx.Client.PutSnapLink(c, link, source)
}

// SignCommand returns a pre-signed URL valid for ttl.
func (ctx *CommandContext) SignCommand(method, p string, ttl time.Duration) (string, error) {
	u, err := ctx.Client.SignURIIn(strings.ToUpper(method), p, ttl)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ParseJobID parses a job identifier given on the command line.
func ParseJobID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a job id", jobs.ErrInvalidJobID, s)
	}
	return id, nil
}

// JobCreateCommand creates a job from map phases followed by reduce phases.
func (ctx *CommandContext) JobCreateCommand(c context.Context, name string, maps, reduces []string) (uuid.UUID, error) {
	if len(maps)+len(reduces) == 0 {
		return uuid.Nil, ErrNoPhases
	}
	var phases []jobs.Phase
	for _, m := range maps {
		phases = append(phases, jobs.NewMapPhase(m))
	}
	for _, r := range reduces {
		phases = append(phases, jobs.NewReducePhase(r))
	}
	return ctx.Client.Jobs().Create(c, jobs.NewJob(name, phases...))
}

// JobAddInputsCommand submits inputs. With no inputs, paths are read from
// stdin one per line and streamed as they are read. A stdin read failure is
// returned even though the lines read before it were already submitted.
func (ctx *CommandContext) JobAddInputsCommand(c context.Context, id uuid.UUID, inputs []string) error {
	if len(inputs) > 0 {
		return ctx.Client.Jobs().AddInputs(c, id, slices.Values(inputs))
	}

	seq, scanErr := scanLines(ctx.Stdin)
	if err := ctx.Client.Jobs().AddInputs(c, id, seq); err != nil {
		return err
	}
	if err := scanErr(); err != nil {
		return fmt.Errorf("reading job inputs: %w", err)
	}
	return nil
}

// scanLines yields the non-blank lines of r. The returned func reports the
// read error that ended the sequence, if any.
func scanLines(r io.Reader) (iter.Seq[string], func() error) {
	var scanErr error
	seq := func(yield func(string) bool) {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
		scanErr = sc.Err()
	}
	return seq, func() error { return scanErr }
}

// JobEndInputCommand closes the job's input.
func (ctx *CommandContext) JobEndInputCommand(c context.Context, id uuid.UUID) (bool, error) {
	return ctx.Client.Jobs().EndInput(c, id)
}

// JobCancelCommand cancels the job.
func (ctx *CommandContext) JobCancelCommand(c context.Context, id uuid.UUID) (bool, error) {
	return ctx.Client.Jobs().Cancel(c, id)
}

// JobGetCommand fetches the job status.
func (ctx *CommandContext) JobGetCommand(c context.Context, id uuid.UUID) (*jobs.Job, error) {
	return ctx.Client.Jobs().Get(c, id)
}

// JobListCommand lists jobs by state, or by name when name is set.
func (ctx *CommandContext) JobListCommand(c context.Context, state, name string) ([]*jobs.Job, error) {
	o := ctx.Client.Jobs()
	if name == "" {
		it, err := o.ListJobs(c, jobs.StateFilter(state))
		if err != nil {
			return nil, err
		}
		return stream.Collect(it)
	}

	ids, err := o.ListJobIDsByName(c, name)
	if err != nil {
		return nil, err
	}
	return stream.Collect(stream.Map(ids, func(id uuid.UUID) (*jobs.Job, error) {
		return o.Get(c, id)
	}))
}

// JobOutputsCommand lists the job's output objects.
func (ctx *CommandContext) JobOutputsCommand(c context.Context, id uuid.UUID) ([]string, error) {
	it, err := ctx.Client.Jobs().Outputs(c, id)
	if err != nil {
		return nil, err
	}
	return stream.Collect(it)
}

// JobFailuresCommand lists the inputs that failed.
func (ctx *CommandContext) JobFailuresCommand(c context.Context, id uuid.UUID) ([]string, error) {
	it, err := ctx.Client.Jobs().Failures(c, id)
	if err != nil {
		return nil, err
	}
	return stream.Collect(it)
}

// JobErrorsCommand lists the job's task errors.
func (ctx *CommandContext) JobErrorsCommand(c context.Context, id uuid.UUID) ([]*jobs.JobError, error) {
	it, err := ctx.Client.Jobs().Errors(c, id)
	if err != nil {
		return nil, err
	}
	return stream.Collect(it)
}

// JobWaitCommand polls the job until it is done or cancelled, checking at
// most maxChecks times with interval between checks.
func (ctx *CommandContext) JobWaitCommand(c context.Context, id uuid.UUID, interval time.Duration, maxChecks int) (*jobs.Job, error) {
	if maxChecks < 1 {
		maxChecks = 1
	}
	o := ctx.Client.Jobs()
	for check := 1; ; check++ {
		job, err := o.Get(c, id)
		if err != nil {
			return nil, err
		}
		if job.Finished() {
			return job, nil
		}
		if check >= maxChecks {
			return job, fmt.Errorf("%w: %s is %s after %d checks", ErrJobNotFinished, id, job.Lifecycle(), check)
		}

		timer := time.NewTimer(interval)
		select {
		case <-c.Done():
			timer.Stop()
			return nil, c.Err()
		case <-timer.C:
		}
	}
}
