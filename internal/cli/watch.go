package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	watchAccountHandle   string
	watchAccountPriority bool
	watchWalletLabel     string
	watchWalletOwner     string
	watchSubscriberPhone string
	watchSubscriberOff   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched accounts, wallets, and SMS subscribers",
}

var watchAccountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage watched social accounts",
}

var watchAccountAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or update a watched account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchAccountHandle == "" {
			return fmt.Errorf("--handle is required")
		}
		return getApp().AddAccount(cmd.Context(), args[0], watchAccountHandle, watchAccountPriority)
	},
}

var watchAccountRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a watched account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RemoveAccount(cmd.Context(), args[0])
	},
}

var watchAccountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAccounts(cmd.Context())
	},
}

var watchWalletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage watched wallets",
}

var watchWalletAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Add or update a watched wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddWallet(cmd.Context(), args[0], watchWalletLabel, watchWalletOwner)
	},
}

var watchWalletRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove a watched wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RemoveWallet(cmd.Context(), args[0])
	},
}

var watchWalletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListWallets(cmd.Context())
	},
}

var watchSubscriberCmd = &cobra.Command{
	Use:   "subscriber",
	Short: "Manage SMS subscribers",
}

var watchSubscriberAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or update an SMS subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchSubscriberPhone == "" {
			return fmt.Errorf("--phone is required")
		}
		return getApp().AddSubscriber(cmd.Context(), args[0], watchSubscriberPhone, !watchSubscriberOff)
	},
}

var watchSubscriberRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an SMS subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RemoveSubscriber(cmd.Context(), args[0])
	},
}

var watchSubscriberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List SMS subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListSubscribers(cmd.Context())
	},
}

func init() {
	watchAccountAddCmd.Flags().StringVar(&watchAccountHandle, "handle", "", "Display handle for the account")
	watchAccountAddCmd.Flags().BoolVar(&watchAccountPriority, "priority", false, "Route this account's posts to the priority channel")

	watchWalletAddCmd.Flags().StringVar(&watchWalletLabel, "label", "", "Human-readable wallet label")
	watchWalletAddCmd.Flags().StringVar(&watchWalletOwner, "subscriber", "", "SMS subscriber id to notify for this wallet")

	watchSubscriberAddCmd.Flags().StringVar(&watchSubscriberPhone, "phone", "", "Phone number in E.164 form")
	watchSubscriberAddCmd.Flags().BoolVar(&watchSubscriberOff, "inactive", false, "Register the subscriber without activating it")

	watchAccountCmd.AddCommand(watchAccountAddCmd, watchAccountRemoveCmd, watchAccountListCmd)
	watchWalletCmd.AddCommand(watchWalletAddCmd, watchWalletRemoveCmd, watchWalletListCmd)
	watchSubscriberCmd.AddCommand(watchSubscriberAddCmd, watchSubscriberRemoveCmd, watchSubscriberListCmd)
	watchCmd.AddCommand(watchAccountCmd, watchWalletCmd, watchSubscriberCmd)
}
