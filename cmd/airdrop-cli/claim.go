package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func claimCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <batch.yaml>",
		Short: "Submit a signed claim batch for the token's caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := loadBatch(args[0])
			if err != nil {
				return err
			}
			params, err := batch.params()
			if err != nil {
				return err
			}
			var result json.RawMessage
			if err := flags.client().call(cmd.Context(), "airdrop_claimRewards", params, &result); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func poolCmd(flags *globalFlags) *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "pool",
		Short: "Reward pool commands",
	}

	var (
		totalUnits string
		asset      string
		nonce      uint64
		amount     string
	)
	create := &cobra.Command{
		Use:   "create <pool-id>",
		Short: "Register a checkpoint funded from the caller's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{
				"pool":       args[0],
				"totalUnits": totalUnits,
				"asset":      asset,
				"nonce":      nonce,
				"amount":     amount,
			}
			return callAndPrint(cmd, flags, "airdrop_createCheckpoint", params)
		},
	}
	create.Flags().StringVar(&totalUnits, "total-units", "", "total eligible units")
	create.Flags().StringVar(&asset, "asset", "NHB", "reward asset")
	create.Flags().Uint64Var(&nonce, "nonce", 0, "asset nonce (0 for fungible)")
	create.Flags().StringVar(&amount, "amount", "", "reward amount deposited")
	_ = create.MarkFlagRequired("total-units")
	_ = create.MarkFlagRequired("amount")

	get := &cobra.Command{
		Use:   "get <pool-id>",
		Short: "Show a registered checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cmd, flags, "airdrop_getCheckpoint", map[string]string{"pool": args[0]})
		},
	}

	claimed := &cobra.Command{
		Use:   "claimed <pool-id> <claimant>",
		Short: "Report whether claimant already claimed the pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cmd, flags, "airdrop_getRewardsClaimed", map[string]string{"pool": args[0], "claimant": args[1]})
		},
	}

	var limit int
	history := &cobra.Command{
		Use:   "history <claimant>",
		Short: "List recorded settlements of a claimant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cmd, flags, "airdrop_getSettlements", map[string]interface{}{"claimant": args[0], "limit": limit})
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "maximum settlements returned")

	subCmd.AddCommand(create, get, claimed, history)
	return subCmd
}

func callAndPrint(cmd *cobra.Command, flags *globalFlags, method string, params interface{}) error {
	var result json.RawMessage
	if err := flags.client().call(cmd.Context(), method, params, &result); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}
