package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect jobs",
	}
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	return jobCmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().GetJob(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return ctx.wrapClientError(err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), job)
			}
			out := cmd.OutOrStdout()
			for _, line := range jobDetailLines(job) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the job as JSON")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var status string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := ctx.client().ListJobs(cmd.Context(), limit, status)
			if err != nil {
				return ctx.wrapClientError(err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderJobTable(list))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of jobs (server default when 0)")
	cmd.Flags().StringVar(&status, "status", "", "Only jobs with this status (pending, processing, completed, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the jobs as JSON")
	return cmd
}

func newDurationCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "duration <audio-url>",
		Short: "Probe the duration of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := ctx.client().AudioDuration(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return ctx.wrapClientError(err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int64{"durationMs": ms})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d ms (%s)\n", ms, formatMillis(ms))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the duration as JSON")
	return cmd
}
