package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-glsync/internal/client"
	"go-glsync/internal/localstate"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 6 * time.Minute
	configDirName  = ".glsyncctl"
)

var (
	cfgFile    string
	serverURL  string
	jsonOutput bool

	api   *client.Client
	state *localstate.Store
)

var rootCmd = &cobra.Command{
	Use:   "glsyncctl",
	Short: "Operate the glsync service",
	Long: `glsyncctl manages Glide connections, table mappings and sync runs
through the glsync HTTP API.

Settings are read from ~/.glsyncctl/config.yaml and GLSYNCCTL_* variables.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func setupApp(_ *cobra.Command, _ []string) error {
	configDir, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if serverURL != "" {
		viper.Set("server", serverURL)
	}
	api = client.New(viper.GetString("server"), viper.GetString("token"), viper.GetDuration("timeout"))

	statePath := viper.GetString("state_path")
	if statePath == "" {
		statePath = filepath.Join(configDir, "state.db")
	}
	state, err = localstate.Open(statePath)
	if err != nil {
		return err
	}
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if state != nil {
		return state.Close()
	}
	return nil
}

func loadConfig() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configDir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GLSYNCCTL")
	viper.AutomaticEnv()
	viper.SetDefault("server", defaultServer)
	viper.SetDefault("timeout", defaultTimeout)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return "", err
		}
	}
	return configDir, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.glsyncctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "glsync service URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(connectionsCmd, mappingsCmd, syncCmd, errorsCmd, tablesCmd)
}
