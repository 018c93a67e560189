package main

import (
	"github.com/spf13/cobra"
)

func adminCmd(flags *globalFlags) *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "admin",
		Short: "Owner-only module administration",
	}

	whitelistAdd := &cobra.Command{
		Use:   "whitelist-add <address>",
		Short: "Allow an address to create pools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cmd, flags, "airdrop_whitelistAddress", map[string]string{"address": args[0]})
		},
	}
	whitelistRemove := &cobra.Command{
		Use:   "whitelist-remove <address>",
		Short: "Revoke pool creation rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cmd, flags, "airdrop_removeWhitelistAddress", map[string]string{"address": args[0]})
		},
	}
	setSigner := &cobra.Command{
		Use:   "set-signer <address>",
		Short: "Rotate the trusted claim signer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cmd, flags, "airdrop_changeSigner", map[string]string{"signer": args[0]})
		},
	}
	signer := &cobra.Command{
		Use:   "signer",
		Short: "Show the current claim signer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cmd, flags, "airdrop_getSigner", nil)
		},
	}

	var nonce uint64
	withdraw := &cobra.Command{
		Use:   "withdraw [asset]",
		Short: "Move the vault's full balance of an asset to the owner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset := ""
			if len(args) == 1 {
				asset = args[0]
			}
			return callAndPrint(cmd, flags, "airdrop_withdrawAll", map[string]interface{}{"asset": asset, "nonce": nonce})
		},
	}
	withdraw.Flags().Uint64Var(&nonce, "nonce", 0, "asset nonce")

	var creditNonce uint64
	credit := &cobra.Command{
		Use:   "credit <address> <asset> <amount>",
		Short: "Record an external deposit into an account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cmd, flags, "bank_credit", map[string]interface{}{
				"address": args[0], "asset": args[1], "amount": args[2], "nonce": creditNonce,
			})
		},
	}
	credit.Flags().Uint64Var(&creditNonce, "nonce", 0, "asset nonce")

	var balanceNonce uint64
	balance := &cobra.Command{
		Use:   "balance <address> [asset]",
		Short: "Show an account balance",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{"address": args[0], "nonce": balanceNonce}
			if len(args) == 2 {
				params["asset"] = args[1]
			}
			return callAndPrint(cmd, flags, "bank_getBalance", params)
		},
	}
	balance.Flags().Uint64Var(&balanceNonce, "nonce", 0, "asset nonce")

	subCmd.AddCommand(whitelistAdd, whitelistRemove, setSigner, signer, withdraw, credit, balance)
	return subCmd
}
