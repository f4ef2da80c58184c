package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

func init() {
	themeCmd.AddCommand(themeListCmd, themeShowCmd, themeCurrentCmd)
	rootCmd.AddCommand(themeCmd)
}

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Inspect the built-in and active themes",
	Long: `Inspect themes.

The active theme is the first of: theme.json next to the executable,
theme.json in ~/.config/cunzhi or ~/.cunzhi, the built-in named by
$CUNZHI_THEME, and the default built-in. A theme file missing an id, a
display name, a description or a message template is skipped.`,
}

var themeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in themes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		current := theme.NewResolver().Resolve().Name
		for _, c := range theme.Available() {
			marker := " "
			if c.Name == current {
				marker = "*"
			}
			cmd.Printf("%s %-14s %s\n", marker, c.Name, c.Label)
		}
	},
}

var themeShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a theme as JSON (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return writeJSON(cmd, theme.NewResolver().Resolve())
		}
		th, ok := theme.Builtin(args[0])
		if !ok {
			return fmt.Errorf("unknown theme %q", args[0])
		}
		return writeJSON(cmd, th)
	},
}

var themeCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active theme and where it came from",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		r := theme.NewResolver()
		th := r.Resolve()
		cmd.Printf("%s (%s)\n", th.Name, r.Source())
		cmd.Printf("server: %s\n", th.Messages.ServerName)
		for _, role := range theme.Roles {
			ident := th.Identity(role)
			cmd.Printf("  %-12s %-12s %s\n", role, ident.ID, ident.DisplayName)
		}
	},
}
