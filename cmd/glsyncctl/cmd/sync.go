package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	statsRange  string
	logsMapping string
	logsLimit   int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run syncs and inspect their progress",
}

var syncTriggerCmd = &cobra.Command{
	Use:   "trigger <mapping-id>",
	Short: "Run a sync for one mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mappingID := args[0]
		fmt.Printf("Syncing mapping %s...\n", mappingID)

		result, err := api.TriggerSync(cmd.Context(), mappingID)
		if err != nil && result.LogID == "" {
			return err
		}
		// the server records last_sync for failed runs too
		_ = state.SetLastSync(cmd.Context(), mappingID, time.Now())

		if jsonOutput {
			return printJSON(result)
		}
		if result.Success {
			okColor.Printf("✓ Sync completed: %d records processed, %d failed\n",
				deref(result.RecordsProcessed), deref(result.FailedRecords))
		} else {
			errColor.Printf("✗ Sync failed: %s\n", result.Error)
		}
		dimColor.Printf("log %s\n", result.LogID)
		return err
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status [mapping-id]",
	Short: "Show the derived sync status of mappings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			status, err := api.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(status)
			}
			return printStatuses(cmd, []statusRow{{status.MappingID, status.AppName, status.GlideTableName, status.SupabaseTable,
				statusText(status.CurrentStatus), status.Progress, status.ErrorCount, status.LastSyncCompletedAt}})
		}

		statuses, err := api.ListStatuses(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(statuses)
		}
		rows := make([]statusRow, len(statuses))
		for i, s := range statuses {
			glide := s.GlideTableName
			if glide == "" {
				glide = s.GlideTable
			}
			rows[i] = statusRow{s.MappingID, s.AppName, glide, s.SupabaseTable,
				statusText(s.CurrentStatus), s.Progress, s.ErrorCount, s.LastSyncCompletedAt}
		}
		return printStatuses(cmd, rows)
	},
}

type statusRow struct {
	mappingID string
	app       string
	glide     string
	supabase  string
	status    string
	progress  int
	errors    int
	completed *time.Time
}

func printStatuses(cmd *cobra.Command, rows []statusRow) error {
	w := newTable()
	fmt.Fprintln(w, "MAPPING\tAPP\tGLIDE\tSUPABASE\tSTATUS\tPROGRESS\tERRORS\tLAST SYNC\t")
	for _, r := range rows {
		completed := r.completed
		if completed == nil {
			// fall back to what this CLI saw last
			if at, ok, err := state.LastSync(cmd.Context(), r.mappingID); err == nil && ok {
				completed = &at
			}
		}
		errs := fmt.Sprint(r.errors)
		if r.errors > 0 {
			errs = errColor.Sprint(r.errors)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%%\t%s\t%s\t\n",
			r.mappingID, truncate(r.app, 20), truncate(r.glide, 24), r.supabase, r.status, r.progress, errs, formatTime(completed))
	}
	return w.Flush()
}

var syncStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Daily sync counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		stats, err := api.GetStats(cmd.Context(), statsRange)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stats)
		}

		w := newTable()
		fmt.Fprintln(w, "DATE\tSYNCS\tSUCCESS\tFAILED\tRECORDS\t")
		for _, d := range stats.Days {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t\n", d.Date, d.SyncCount, d.SuccessCount, d.FailureCount, d.RecordsProcessed)
		}
		t := stats.Totals
		fmt.Fprintf(w, "total\t%d\t%s\t%s\t%d\t\n", t.SyncCount, okColor.Sprint(t.SuccessCount), errColor.Sprint(t.FailureCount), t.RecordsProcessed)
		return w.Flush()
	},
}

var syncLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Recent sync runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logs, err := api.ListLogs(cmd.Context(), logsMapping, logsLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(logs)
		}

		w := newTable()
		fmt.Fprintln(w, "LOG\tMAPPING\tSTATUS\tPROCESSED\tFAILED\tSTARTED\tMESSAGE\t")
		for _, l := range logs {
			started := l.StartedAt
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t\n",
				l.ID.Hex(), l.MappingID.Hex(), statusText(l.Status), l.RecordsProcessed, l.FailedRecords, formatTime(&started), truncate(l.Message, 40))
		}
		return w.Flush()
	},
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func init() {
	syncStatsCmd.Flags().StringVar(&statsRange, "range", "30", "7, 14, 30 or all")
	syncLogsCmd.Flags().StringVar(&logsMapping, "mapping", "", "only runs of this mapping")
	syncLogsCmd.Flags().IntVar(&logsLimit, "limit", 20, "max runs to show")

	syncCmd.AddCommand(syncTriggerCmd, syncStatusCmd, syncStatsCmd, syncLogsCmd)
}
