package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/cunzhi/internal/capability"
)

var toolsJSON bool

var (
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func init() {
	toolsListCmd.Flags().BoolVar(&toolsJSON, "json", false, "print JSON")
	toolsCmd.AddCommand(toolsListCmd, toolsStatusCmd, toolsEnableCmd, toolsDisableCmd, toolsResetCmd)
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and toggle the themed MCP tools",
	Long: `List and toggle the MCP tools of the active theme.

The interaction tool is always enabled. Changes are written to the
configuration document and picked up by a running server immediately.

Examples:
  cunzhi tools list
  cunzhi tools enable megatron
  cunzhi tools disable megatron
  cunzhi tools reset`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools of the active theme",
	Args:  cobra.NoArgs,
	RunE:  runToolsList,
}

var toolsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the id to enabled map as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return writeJSON(cmd, store.Status())
	},
}

var toolsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], true)
	},
}

var toolsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], false)
	},
}

var toolsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default enablement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.ResetToDefaults(); err != nil {
			return err
		}
		cmd.Println("tool enablement reset to defaults")
		return nil
	},
}

func runToolsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	tools := store.Tools()
	if toolsJSON {
		return writeJSON(cmd, tools)
	}

	th := store.Theme()
	cmd.Printf("%s (%s)\n\n", th.Messages.ServerName, th.Name)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tSTATUS")
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Role, statusLabel(t))
	}
	return w.Flush()
}

func statusLabel(t capability.ToolConfig) string {
	switch {
	case !t.CanDisable:
		return enabledStyle.Render("enabled (always)")
	case t.Enabled:
		return enabledStyle.Render("enabled")
	default:
		return disabledStyle.Render("disabled")
	}
}

func setEnabled(cmd *cobra.Command, id string, enabled bool) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	th := store.Theme()
	if _, ok := th.RoleOf(id); !ok {
		return fmt.Errorf("%s (known ids: %v)", th.UnknownToolMessage(id), th.IDs())
	}

	if err := store.SetEnabled(id, enabled); err != nil {
		if errors.Is(err, capability.ErrLeaderImmutable) {
			return errors.New(th.LeaderCannotDisableMessage())
		}
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	cmd.Printf("%s %s\n", id, state)
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
