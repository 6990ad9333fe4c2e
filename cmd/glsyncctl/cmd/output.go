package cmd

import (
	"encoding/json"
	"os"
	"text/tabwriter"
	"time"

	"go-glsync/internal/client"
	"go-glsync/internal/features/sync"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func printError(err error) {
	if client.IsConflict(err) {
		warnColor.Fprintf(os.Stderr, "Skipped: %v\n", err)
		return
	}
	errColor.Fprintf(os.Stderr, "Error: %v\n", err)
}

func statusText(s sync.LogStatus) string {
	switch s {
	case sync.StatusCompleted:
		return okColor.Sprint(s)
	case sync.StatusFailed:
		return errColor.Sprint(s)
	case sync.StatusStarted, sync.StatusProcessing:
		return warnColor.Sprint(s)
	}
	return dimColor.Sprint(s)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func enabledText(enabled bool) string {
	if enabled {
		return okColor.Sprint("on")
	}
	return dimColor.Sprint("off")
}

func checkMark(ok bool) string {
	if ok {
		return okColor.Sprint("✓")
	}
	return errColor.Sprint("✗")
}
