// Package main implements the cunzhi CLI: tool enablement management, theme
// inspection and the terminal popup used by the MCP server.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/cunzhi/internal/capability"
	"github.com/fyrsmithlabs/cunzhi/internal/config"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

var (
	// configPath overrides the configuration document location
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cunzhi",
	Short: "Manage the cunzhi MCP tools",
	Long: `cunzhi manages the themed MCP tools served by cunzhi-mcp.

It enables and disables tools in the configuration document, inspects the
built-in themes, and provides the terminal popup the server opens when it
needs an answer from you.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default ~/.config/cunzhi/config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("cunzhi %s\n", version)
	},
}

// resolveConfigPath returns --config, $CUNZHI_CONFIG or the default path.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// openStore resolves the active theme and opens the enablement store.
func openStore() (*capability.Store, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	th := theme.NewResolver().Resolve()
	return capability.NewStore(th, config.NewFileStore(path), nil), nil
}
