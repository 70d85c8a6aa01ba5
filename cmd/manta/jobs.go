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

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-manta/pkg/cli"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Run and inspect compute jobs",
	Long: `Create compute jobs, feed them input objects and collect their results.

A job is a list of map and reduce phases. Inputs are added after creation
and the job starts its final phase once input is ended.`,
	Example: `  id=$(manta job create --map 'wc -l' --reduce 'cat')
  cat inputs.txt | manta job add-inputs $id
  manta job end-input $id
  manta job wait $id
  manta job outputs $id`,
}

// jobIDCommand builds a subcommand that takes a single job id.
func jobIDCommand(use, short string, run func(cmd *cobra.Command, cc *cli.CommandContext, id uuid.UUID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cli.ParseJobID(args[0])
			if err != nil {
				return err
			}
			return withClient(func(cc *cli.CommandContext) error {
				return run(cmd, cc, id)
			})
		},
	}
}

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a job and print its id",
	Long: `Create a job from --map and --reduce phases. All map phases run first,
followed by the reduce phases, in the order given.`,
	Example: `  manta job create --name count --map 'wc -l' --reduce 'awk "{s+=\$1} END {print s}"'`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")           //nolint:errcheck // flags are validated by cobra
		maps, _ := cmd.Flags().GetStringArray("map")       //nolint:errcheck // flags are validated by cobra
		reduces, _ := cmd.Flags().GetStringArray("reduce") //nolint:errcheck // flags are validated by cobra

		return withClient(func(cc *cli.CommandContext) error {
			id, err := cc.JobCreateCommand(cmd.Context(), name, maps, reduces)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var jobAddInputsCmd = &cobra.Command{
	Use:   "add-inputs <job-id> [path...]",
	Short: "Add input objects to a job",
	Long: `Add input objects to a job. Without path arguments, paths are read from
stdin one per line and streamed to the service as they arrive.`,
	Example: `  manta job add-inputs $id ~~/stor/a.log ~~/stor/b.log
  cat inputs.txt | manta job add-inputs $id`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := cli.ParseJobID(args[0])
		if err != nil {
			return err
		}
		return withClient(func(cc *cli.CommandContext) error {
			return cc.JobAddInputsCommand(cmd.Context(), id, args[1:])
		})
	},
}

var jobEndInputCmd = jobIDCommand("end-input", "Close a job's input", func(cmd *cobra.Command, cc *cli.CommandContext, id uuid.UUID) error {
	accepted, err := cc.JobEndInputCommand(cmd.Context(), id)
	if err != nil {
		return err
	}
	printAccepted(accepted, fmt.Sprintf("Input of job %s closed", id))
	return nil
})

var jobCancelCmd = jobIDCommand("cancel", "Cancel a job", func(cmd *cobra.Command, cc *cli.CommandContext, id uuid.UUID) error {
	accepted, err := cc.JobCancelCommand(cmd.Context(), id)
	if err != nil {
		return err
	}
	printAccepted(accepted, fmt.Sprintf("Job %s cancelled", id))
	return nil
})

func printAccepted(accepted bool, message string) {
	if !accepted {
		fmt.Print(cli.FormatOperationResult(&cli.OperationResult{
			Success: false,
			Error:   "request was not accepted",
		}, outputFormat()))
		return
	}
	printResult(message)
}

var jobGetCmd = jobIDCommand("get", "Show a job's status", func(cmd *cobra.Command, cc *cli.CommandContext, id uuid.UUID) error {
	job, err := cc.JobGetCommand(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Print(cli.FormatJobResult(job, outputFormat()))
	return nil
})

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Example: `  manta job list                                 # All jobs
  manta job list --state running                 # Running jobs only
  manta job list --name count                    # Jobs with a given name`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, _ := cmd.Flags().GetString("state") //nolint:errcheck // flags are validated by cobra
		name, _ := cmd.Flags().GetString("name")   //nolint:errcheck // flags are validated by cobra

		return withClient(func(cc *cli.CommandContext) error {
			list, err := cc.JobListCommand(cmd.Context(), state, name)
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatJobsResult(list, outputFormat()))
			return nil
		})
	},
}

var jobOutputsCmd = jobIDCommand("outputs", "List a job's output objects", func(cmd *cobra.Command, cc *cli.CommandContext, id uuid.UUID) error {
	lines, err := cc.JobOutputsCommand(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Print(cli.FormatLines(lines, outputFormat()))
	return nil
})

var jobFailuresCmd = jobIDCommand("failures", "List inputs that failed", func(cmd *cobra.Command, cc *cli.CommandContext, id uuid.UUID) error {
	lines, err := cc.JobFailuresCommand(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Print(cli.FormatLines(lines, outputFormat()))
	return nil
})

var jobErrorsCmd = jobIDCommand("errors", "List a job's task errors", func(cmd *cobra.Command, cc *cli.CommandContext, id uuid.UUID) error {
	errs, err := cc.JobErrorsCommand(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Print(cli.FormatJobErrors(errs, outputFormat()))
	return nil
})

var jobWaitCmd = jobIDCommand("wait", "Wait for a job to finish", func(cmd *cobra.Command, cc *cli.CommandContext, id uuid.UUID) error {
	interval, _ := cmd.Flags().GetDuration("interval") //nolint:errcheck // flags are validated by cobra
	maxChecks, _ := cmd.Flags().GetInt("max-checks")   //nolint:errcheck // flags are validated by cobra

	job, err := cc.JobWaitCommand(cmd.Context(), id, interval, maxChecks)
	if err != nil {
		return err
	}
	fmt.Print(cli.FormatJobResult(job, outputFormat()))
	return nil
})

func init() {
	jobCreateCmd.Flags().String("name", "", "job name")
	jobCreateCmd.Flags().StringArray("map", nil, "map phase command (repeatable)")
	jobCreateCmd.Flags().StringArray("reduce", nil, "reduce phase command (repeatable)")

	jobListCmd.Flags().String("state", "", "only list jobs in this state (running, done)")
	jobListCmd.Flags().String("name", "", "only list jobs with this name")

	jobWaitCmd.Flags().Duration("interval", 5*time.Second, "time between status checks")
	jobWaitCmd.Flags().Int("max-checks", 120, "give up after this many status checks")

	jobCmd.AddCommand(jobCreateCmd)
	jobCmd.AddCommand(jobAddInputsCmd)
	jobCmd.AddCommand(jobEndInputCmd)
	jobCmd.AddCommand(jobCancelCmd)
	jobCmd.AddCommand(jobGetCmd)
	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobOutputsCmd)
	jobCmd.AddCommand(jobFailuresCmd)
	jobCmd.AddCommand(jobErrorsCmd)
	jobCmd.AddCommand(jobWaitCmd)
}
