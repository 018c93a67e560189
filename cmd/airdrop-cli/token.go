package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-merlea/sc-krogan-public/crypto"
	"github.com/dan-merlea/sc-krogan-public/rpc"
)

func tokenCmd() *cobra.Command {
	var (
		secretEnv string
		caller    string
		issuer    string
		audience  string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 bearer token for a caller address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := strings.TrimSpace(os.Getenv(secretEnv))
			if secret == "" {
				return fmt.Errorf("%s is not set", secretEnv)
			}
			if caller == "" {
				return errors.New("--caller is required")
			}
			addr, err := crypto.ParseAddress(caller)
			if err != nil {
				return err
			}
			token, err := rpc.MintToken(secret, addr, issuer, audience, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secretEnv, "secret-env", "AIRDROP_JWT_SECRET", "environment variable holding the HMAC secret")
	cmd.Flags().StringVar(&caller, "caller", "", "address placed in the token subject")
	cmd.Flags().StringVar(&issuer, "issuer", "nhb-airdrop", "token issuer")
	cmd.Flags().StringVar(&audience, "audience", "", "token audience")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
