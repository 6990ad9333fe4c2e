package cmd

import (
	"fmt"
	"os"
	"strings"

	"go-glsync/internal/features/connection"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	connAppName string
	connAppID   string
	connAPIKey  string
)

var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Aliases: []string{"conn"},
	Short:   "Manage Glide app connections",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connections",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conns, err := api.ListConnections(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(conns)
		}
		if len(conns) == 0 {
			fmt.Println("No connections. Create one with: glsyncctl connections create")
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tAPP\tAPP ID\tKEY\tSTATUS\tLAST SYNC\t")
		for _, c := range conns {
			status := okColor.Sprint(c.Status)
			if c.Status != connection.StatusActive {
				status = dimColor.Sprint(c.Status)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
				c.ID.Hex(), truncate(c.AppName, 30), c.AppID, c.APIKey, status, formatTime(c.LastSync))
		}
		return w.Flush()
	},
}

var connectionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a Glide app",
	Long: `Register a Glide app by its app id and API key.

The API key is prompted for without echo when --api-key is not given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if connAPIKey == "" {
			fmt.Print("Glide API key: ")
			key, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read api key: %w", err)
			}
			connAPIKey = strings.TrimSpace(string(key))
		}

		created, err := api.CreateConnection(cmd.Context(), connection.Connection{
			AppName: connAppName,
			AppID:   connAppID,
			APIKey:  connAPIKey,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(created)
		}
		okColor.Printf("Connection %s created for %s\n", created.ID.Hex(), created.AppName)
		return nil
	},
}

var connectionsTestCmd = &cobra.Command{
	Use:   "test <connection-id>",
	Short: "Check the stored credentials against Glide",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := api.TestConnection(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(result)
		}
		fmt.Printf("%s connection is %s\n", checkMark(result.Success), result.Status)
		if result.Error != "" {
			errColor.Println(result.Error)
		}
		return nil
	},
}

var connectionsDeleteCmd = &cobra.Command{
	Use:   "delete <connection-id>",
	Short: "Delete a connection and all of its mappings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.DeleteConnection(cmd.Context(), args[0]); err != nil {
			return err
		}
		okColor.Printf("Connection %s deleted\n", args[0])
		return nil
	},
}

func init() {
	connectionsCreateCmd.Flags().StringVar(&connAppName, "name", "", "display name (defaults to the app id)")
	connectionsCreateCmd.Flags().StringVar(&connAppID, "app-id", "", "Glide app id")
	connectionsCreateCmd.Flags().StringVar(&connAPIKey, "api-key", "", "Glide API key")
	_ = connectionsCreateCmd.MarkFlagRequired("app-id")

	connectionsCmd.AddCommand(connectionsListCmd, connectionsCreateCmd, connectionsTestCmd, connectionsDeleteCmd)
}
