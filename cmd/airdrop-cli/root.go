package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	defaultRPCEndpoint = "http://localhost:8080"
	defaultPassEnv     = "AIRDROP_KEYSTORE_PASS"
	tokenEnv           = "AIRDROP_TOKEN"
)

type globalFlags struct {
	rpc   string
	token string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "airdrop-cli",
		Short:         "Operate the airdrop claim module.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.rpc, "rpc", envOr("AIRDROP_RPC", defaultRPCEndpoint), "JSON-RPC endpoint")
	root.PersistentFlags().StringVar(&flags.token, "token", os.Getenv(tokenEnv), "bearer token for mutating calls")

	root.AddCommand(keysCmd())
	root.AddCommand(signCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(claimCmd(flags))
	root.AddCommand(poolCmd(flags))
	root.AddCommand(adminCmd(flags))
	root.AddCommand(exportCmd())
	return root
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func (g *globalFlags) client() *rpcClient {
	return newRPCClient(g.rpc, g.token)
}
