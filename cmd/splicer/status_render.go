package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"splicer/internal/api"
	"splicer/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// renderStatusLine formats "  Label:  [KIND] message", wrapped in the
// kind's color when colorize is set.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.label)
	if message != "" {
		b.WriteString(" " + message)
	}
	if colorize {
		return style.color + b.String() + ansiReset
	}
	return b.String()
}

func renderSectionHeader(title string, colorize bool) []string {
	lines := []string{fmt.Sprintf("== %s ==", strings.TrimSpace(title))}
	lines = append(lines, strings.Repeat("-", len(lines[0])))
	if colorize {
		for i := range lines {
			lines[i] = ansiBlue + lines[i] + ansiReset
		}
	}
	return lines
}

// shouldColorize reports whether w is a terminal. NO_COLOR disables color.
func shouldColorize(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// serverLines renders reachability and capabilities. A nil healthErr means
// the server answered; caps is ignored otherwise.
func serverLines(apiURL string, healthErr error, caps api.Capabilities, capsErr error, colorize bool) []string {
	if healthErr != nil {
		return []string{renderStatusLine("Server", statusError, fmt.Sprintf("%s unreachable (%v)", apiURL, healthErr), colorize)}
	}
	lines := []string{renderStatusLine("Server", statusOK, apiURL, colorize)}
	switch {
	case capsErr != nil:
		lines = append(lines, renderStatusLine("Full pipeline", statusError, capsErr.Error(), colorize))
	case caps.FullPipeline:
		lines = append(lines, renderStatusLine("Full pipeline", statusOK, fmt.Sprintf("available (%s)", caps.Backend), colorize))
	default:
		detail := "unavailable; stitch jobs return previews"
		if caps.Detail != "" {
			detail = fmt.Sprintf("unavailable (%s); stitch jobs return previews", caps.Detail)
		}
		lines = append(lines, renderStatusLine("Full pipeline", statusWarn, detail, colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}
