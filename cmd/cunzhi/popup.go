package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/cunzhi/internal/interaction"
	"github.com/fyrsmithlabs/cunzhi/internal/interaction/tui"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

var requestPath string

func init() {
	popupCmd.Flags().StringVar(&requestPath, interaction.RequestFlag[2:], "", "request file written by cunzhi-mcp")
	_ = popupCmd.MarkFlagRequired(interaction.RequestFlag[2:])
	rootCmd.AddCommand(popupCmd)
}

var popupCmd = &cobra.Command{
	Use:    "popup --request <file>",
	Short:  "Show an interaction request on the terminal",
	Hidden: true,
	Long: `Show an interaction request on the controlling terminal and print the
response as JSON on stdout. Run by cunzhi-mcp; not meant for direct use.`,
	Args: cobra.NoArgs,
	RunE: runPopup,
}

func runPopup(cmd *cobra.Command, args []string) error {
	if requestPath == "" {
		return errors.New("a request file is required")
	}
	req, err := interaction.ReadRequest(requestPath)
	if err != nil {
		return err
	}

	tty, err := tui.OpenTTY()
	if err != nil {
		return err
	}
	defer tty.Close()

	th := theme.NewResolver().Resolve()
	title := th.Leader().DisplayName + " · " + th.Messages.ServerName

	resp, err := tui.Run(cmd.Context(), title, req, tty, tty)
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("popup returned no response")
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
}
