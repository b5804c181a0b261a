package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var simulateFile string

// simulateCmd 用于在不接入真实索引器的情况下验证告警链路。
var simulateCmd = &cobra.Command{
	Use:   "simulate-webhook",
	Short: "Replay a saved webhook payload through classification and routing",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateFile == "" {
			return fmt.Errorf("--file is required")
		}
		return getApp().SimulateWebhook(cmd.Context(), simulateFile)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateFile, "file", "", "Path to a JSON file holding a transaction-record list")
}
