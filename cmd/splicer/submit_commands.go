package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"splicer/internal/api"
	"splicer/internal/manifest"
	"splicer/internal/poller"
)

func newChunkCommand(ctx *commandContext) *cobra.Command {
	var chunkSeconds int
	var totalMs int64
	var noWait bool

	cmd := &cobra.Command{
		Use:   "chunk <audio-url>",
		Short: "Split an audio track into fixed-length chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			audioURL := strings.TrimSpace(args[0])
			if totalMs <= 0 {
				ms, err := client.AudioDuration(cmd.Context(), audioURL)
				if err != nil {
					return ctx.wrapClientError(fmt.Errorf("probe audio duration: %w", err))
				}
				totalMs = ms
			}
			job, err := client.SubmitChunk(cmd.Context(), api.ChunkRequest{
				AudioURL:         audioURL,
				ChunkDurationSec: chunkSeconds,
				TotalDurationMs:  totalMs,
			})
			if err != nil {
				return ctx.wrapClientError(err)
			}
			return followJob(cmd, ctx, client, job, noWait)
		},
	}

	cmd.Flags().IntVar(&chunkSeconds, "chunk-seconds", 0, "Chunk length in seconds (server default when 0)")
	cmd.Flags().Int64Var(&totalMs, "total-ms", 0, "Total audio duration in milliseconds (probed when omitted)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Print the job id and return without polling")
	return cmd
}

func newStitchCommand(ctx *commandContext) *cobra.Command {
	var segmentsPath string
	var audioURL string
	var outputKey string
	var noWait bool

	cmd := &cobra.Command{
		Use:   "stitch",
		Short: "Concatenate video segments, optionally muxing an audio track",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadStitchRequest(segmentsPath)
			if err != nil {
				return err
			}
			if value := strings.TrimSpace(audioURL); value != "" {
				req.AudioURL = value
			}
			if value := strings.TrimSpace(outputKey); value != "" {
				req.OutputKey = value
			}
			client := ctx.client()
			job, err := client.SubmitStitch(cmd.Context(), req)
			if err != nil {
				return ctx.wrapClientError(err)
			}
			return followJob(cmd, ctx, client, job, noWait)
		},
	}

	cmd.Flags().StringVarP(&segmentsPath, "segments", "s", "", "Segment list file (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&audioURL, "audio-url", "", "Audio track to mux (overrides the file)")
	cmd.Flags().StringVar(&outputKey, "output-key", "", "Storage key for the stitched video (overrides the file)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Print the job id and return without polling")
	_ = cmd.MarkFlagRequired("segments")
	return cmd
}

func loadStitchRequest(path string) (api.StitchRequest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return api.StitchRequest{}, errors.New("segment list path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return api.StitchRequest{}, fmt.Errorf("read segment list: %w", err)
	}
	file, err := manifest.DecodeSegmentFile(data, manifest.FormatFromPath(path))
	if err != nil {
		return api.StitchRequest{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return api.StitchRequest{
		Segments:  file.Segments,
		AudioURL:  file.AudioURL,
		OutputKey: file.OutputKey,
	}, nil
}

// followJob polls job until it is terminal and prints progress lines and the result.
func followJob(cmd *cobra.Command, ctx *commandContext, client *api.Client, job api.Job, noWait bool) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Submitted %s job %s\n", job.Kind, job.ID)
	if noWait {
		return nil
	}

	expected := ctx.expectedDuration()
	last := ""
	result, err := ctx.poller(client).Poll(cmd.Context(), job.ID, expected, func(u poller.Update) {
		line := formatUpdate(u)
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}
	})
	if err != nil {
		var failed *poller.JobFailedError
		if errors.As(err, &failed) {
			return fmt.Errorf("job %s failed: %w", job.ID, failed)
		}
		return ctx.wrapClientError(err)
	}

	final, err := client.GetJob(context.WithoutCancel(cmd.Context()), job.ID)
	if err != nil {
		final = api.Job{ID: job.ID, Kind: job.Kind, ResultURL: result.ResultURL, Preview: result.Preview}
	}
	for _, line := range resultLines(final) {
		fmt.Fprintln(out, line)
	}
	return nil
}
