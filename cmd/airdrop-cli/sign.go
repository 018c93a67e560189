package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
)

func signCmd() *cobra.Command {
	keyFlags := &keystoreFlags{}
	var (
		claimant string
		pool     string
		units    uint32
		batch    string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign claim entitlements with the trusted signer key",
		Long: "Signs claimant||pool||'_'||units for one entitlement, or every entry of a YAML " +
			"batch when --batch is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keyFlags.load()
			if err != nil {
				return err
			}
			if batch != "" {
				doc, err := loadBatch(batch)
				if err != nil {
					return err
				}
				if err := signBatch(key, doc); err != nil {
					return err
				}
				if out == "" {
					out = batch
				}
				if err := writeBatch(out, doc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signed %d entries into %s\n", len(doc.Entries), out)
				return nil
			}
			if claimant == "" || pool == "" {
				return errors.New("--claimant and --pool are required without --batch")
			}
			addr, err := crypto.ParseAddress(claimant)
			if err != nil {
				return err
			}
			poolID, err := airdrop.ParsePoolID(pool)
			if err != nil {
				return err
			}
			sig := nativeairdrop.SignClaim(key, addr, poolID, units)
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sig[:]))
			return nil
		},
	}
	keyFlags.bind(cmd)
	cmd.Flags().StringVar(&claimant, "claimant", "", "claimant address")
	cmd.Flags().StringVar(&pool, "pool", "", "pool id (32-byte hex)")
	cmd.Flags().Uint32Var(&units, "units", 0, "eligible units")
	cmd.Flags().StringVar(&batch, "batch", "", "YAML batch to sign in place")
	cmd.Flags().StringVar(&out, "out", "", "write the signed batch here instead of in place")
	return cmd
}
