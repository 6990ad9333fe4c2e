package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	errorsMapping  string
	errorsResolved bool
	resolveNotes   string
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Inspect, resolve and retry record-level sync errors",
}

var errorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync errors, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		errs, err := api.ListErrors(cmd.Context(), errorsMapping, errorsResolved)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(errs)
		}
		if len(errs) == 0 {
			okColor.Println("No sync errors")
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tMAPPING\tTYPE\tRETRYABLE\tCREATED\tRESOLVED\tMESSAGE\t")
		for _, e := range errs {
			created := e.CreatedAt
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				e.ID.Hex(), e.MappingID.Hex(), e.ErrorType, checkMark(e.Retryable), formatTime(&created), formatTime(e.ResolvedAt), truncate(e.ErrorMessage, 50))
		}
		return w.Flush()
	},
}

var errorsResolveCmd = &cobra.Command{
	Use:   "resolve <error-id>",
	Short: "Mark an error resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := api.ResolveError(cmd.Context(), args[0], resolveNotes)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resolved)
		}
		okColor.Printf("Error %s resolved at %s\n", resolved.ID.Hex(), formatTime(resolved.ResolvedAt))
		return nil
	},
}

var errorsRetryCmd = &cobra.Command{
	Use:   "retry <error-id>",
	Short: "Replay the failed record through the sync function",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := api.RetryError(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(result)
		}
		fmt.Printf("%s retry of %s\n", checkMark(result.Success), args[0])
		return nil
	},
}

func init() {
	errorsListCmd.Flags().StringVar(&errorsMapping, "mapping", "", "only errors of this mapping")
	errorsListCmd.Flags().BoolVar(&errorsResolved, "all", false, "include resolved errors")
	errorsResolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "resolution notes")

	errorsCmd.AddCommand(errorsListCmd, errorsResolveCmd, errorsRetryCmd)
}
