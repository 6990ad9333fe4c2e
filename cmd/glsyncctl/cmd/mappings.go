package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mappingsConnection string

var mappingsCmd = &cobra.Command{
	Use:     "mappings",
	Aliases: []string{"map"},
	Short:   "Manage Glide table to Supabase table mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mappings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mappings, err := api.ListMappings(cmd.Context(), mappingsConnection)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(mappings)
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tGLIDE TABLE\tSUPABASE TABLE\tDIRECTION\tCOLUMNS\tENABLED\t")
		for _, m := range mappings {
			glide := m.GlideTableDisplayName
			if glide == "" {
				glide = m.GlideTable
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t\n",
				m.ID.Hex(), truncate(glide, 30), m.SupabaseTable, m.SyncDirection, len(m.ColumnMappings), enabledText(m.Enabled))
		}
		return w.Flush()
	},
}

var mappingsToggleCmd = &cobra.Command{
	Use:   "toggle <mapping-id>",
	Short: "Enable or disable a mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := api.ToggleMapping(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(m)
		}
		fmt.Printf("Mapping %s is now %s\n", m.ID.Hex(), enabledText(m.Enabled))
		return nil
	},
}

var mappingsRetargetCmd = &cobra.Command{
	Use:   "retarget <mapping-id> <supabase-table>",
	Short: "Point a mapping at another Supabase table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := api.ChangeTargetTable(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(m)
		}
		okColor.Printf("Mapping %s now writes to %s\n", m.ID.Hex(), m.SupabaseTable)
		return nil
	},
}

func init() {
	mappingsListCmd.Flags().StringVar(&mappingsConnection, "connection", "", "only mappings of this connection")

	mappingsCmd.AddCommand(mappingsListCmd, mappingsToggleCmd, mappingsRetargetCmd)
}
