package cmd

import (
	"fmt"
	"strings"

	"go-glsync/internal/features/tables"

	"github.com/spf13/cobra"
)

var tableColumns []string

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List and create gl_ tables in Supabase",
}

var tablesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gl_ tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		list, err := api.ListTables(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(list)
		}

		w := newTable()
		fmt.Fprintln(w, "TABLE\tCOLUMNS\t")
		for _, t := range list {
			fmt.Fprintf(w, "%s\t%d\t\n", t.Name, t.ColumnCount)
		}
		return w.Flush()
	},
}

var tablesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a gl_ table",
	Long: `Create a gl_ table with the standard id, glide_row_id, created_at
and updated_at columns plus the given ones.

Columns are name:type[:unique][:required][:pk], e.g. --column price:numeric:required`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def := tables.TableDefinition{Name: args[0]}
		for _, raw := range tableColumns {
			col, err := parseColumn(raw)
			if err != nil {
				return err
			}
			def.Columns = append(def.Columns, col)
		}

		created, err := api.CreateTable(cmd.Context(), def)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(created)
		}
		okColor.Printf("Table %s created\n", created.Name)
		return nil
	},
}

func parseColumn(raw string) (tables.ColumnDefinition, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return tables.ColumnDefinition{}, fmt.Errorf("column %q: expected name:type", raw)
	}

	col := tables.ColumnDefinition{Name: parts[0], Type: tables.SQLType(parts[1]), Nullable: true}
	for _, flag := range parts[2:] {
		switch flag {
		case "unique":
			col.Unique = true
		case "required":
			col.Nullable = false
		case "pk":
			col.PrimaryKey = true
			col.Nullable = false
		default:
			return tables.ColumnDefinition{}, fmt.Errorf("column %q: unknown option %q", raw, flag)
		}
	}
	return col, nil
}

func init() {
	tablesCreateCmd.Flags().StringArrayVar(&tableColumns, "column", nil, "column as name:type[:unique][:required][:pk]")

	tablesCmd.AddCommand(tablesListCmd, tablesCreateCmd)
}
