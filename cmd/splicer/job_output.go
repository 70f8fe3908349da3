package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"splicer/internal/api"
	"splicer/internal/poller"
)

var titleCaser = cases.Title(language.Und)

func titleCase(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return ""
	}
	return titleCaser.String(value)
}

func formatUpdate(u poller.Update) string {
	line := fmt.Sprintf("[%3d%%] %s", u.Progress, titleCase(u.Stage))
	if msg := strings.TrimSpace(u.Message); msg != "" {
		line += " - " + msg
	}
	return line
}

// resultSummary is the subset of chunk and stitch results the CLI prints.
type resultSummary struct {
	DurationMs   int64  `json:"durationMs"`
	SizeBytes    int64  `json:"sizeBytes"`
	TotalBytes   int64  `json:"totalBytes"`
	SegmentCount int    `json:"segmentCount"`
	ManifestURL  string `json:"manifestUrl"`
	Chunks       []struct {
		SizeBytes int64 `json:"sizeBytes"`
	} `json:"chunks"`
}

func resultLines(job api.Job) []string {
	var lines []string
	if job.ResultURL != "" {
		lines = append(lines, "Result: "+job.ResultURL)
	}
	if job.Preview {
		lines = append(lines, "Preview only: full assembly was unavailable; the result is the first segment without audio")
	}
	if len(job.Result) == 0 {
		return lines
	}
	var summary resultSummary
	if err := json.Unmarshal(job.Result, &summary); err != nil {
		return lines
	}
	switch job.Kind {
	case "chunk":
		var total int64
		for _, chunk := range summary.Chunks {
			total += chunk.SizeBytes
		}
		lines = append(lines, fmt.Sprintf("Chunks: %d (%s)", len(summary.Chunks), humanize.IBytes(uint64(max(total, 0)))))
	case "stitch":
		size := summary.SizeBytes
		if job.Preview {
			size = summary.TotalBytes
		}
		if summary.DurationMs > 0 {
			lines = append(lines, "Duration: "+formatMillis(summary.DurationMs))
		}
		lines = append(lines, "Size: "+humanize.IBytes(uint64(max(size, 0))))
		if summary.ManifestURL != "" {
			lines = append(lines, "Manifest: "+summary.ManifestURL)
		}
	}
	return lines
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func jobRows(list []api.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			job.Kind,
			titleCase(job.Status),
			fmt.Sprintf("%d%%", job.Progress),
			titleCase(job.Stage),
			formatUpdated(job.UpdatedAt),
		})
	}
	return rows
}

func formatUpdated(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.Time(parsed)
}

func renderJobTable(list []api.Job) string {
	cols := columns("ID", "Kind", "Status", "Progress", "Stage", "Updated")
	cols[2].align = text.AlignCenter
	cols[3].align = text.AlignRight
	return renderTable(cols, jobRows(list))
}

func jobDetailLines(job api.Job) []string {
	lines := []string{
		fmt.Sprintf("ID:       %s", job.ID),
		fmt.Sprintf("Kind:     %s", job.Kind),
		fmt.Sprintf("Status:   %s", titleCase(job.Status)),
		fmt.Sprintf("Progress: %d%%", job.Progress),
	}
	if job.Stage != "" {
		lines = append(lines, fmt.Sprintf("Stage:    %s", titleCase(job.Stage)))
	}
	if job.Message != "" {
		lines = append(lines, fmt.Sprintf("Message:  %s", job.Message))
	}
	if job.Error != "" {
		lines = append(lines, fmt.Sprintf("Error:    %s", job.Error))
	}
	lines = append(lines, fmt.Sprintf("Preview:  %s", yesNo(job.Preview)))
	if job.CreatedAt != "" {
		lines = append(lines, fmt.Sprintf("Created:  %s", job.CreatedAt))
	}
	if job.UpdatedAt != "" {
		lines = append(lines, fmt.Sprintf("Updated:  %s (%s)", job.UpdatedAt, formatUpdated(job.UpdatedAt)))
	}
	return append(lines, resultLines(job)...)
}
