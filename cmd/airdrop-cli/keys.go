package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-merlea/sc-krogan-public/cmd/internal/passphrase"
	"github.com/dan-merlea/sc-krogan-public/crypto"
)

type keystoreFlags struct {
	path      string
	passEnv   string
	emptyPass bool
}

func (f *keystoreFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "keystore", "signer.keystore", "path to the keystore file")
	cmd.Flags().StringVar(&f.passEnv, "pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	cmd.Flags().BoolVar(&f.emptyPass, "empty-pass", false, "use an empty passphrase (generated dev keystores)")
}

func (f *keystoreFlags) passphrase() (string, error) {
	if f.emptyPass {
		return "", nil
	}
	return passphrase.NewSource(f.passEnv, "keystore").Get()
}

func (f *keystoreFlags) load() (*crypto.PrivateKey, error) {
	pass, err := f.passphrase()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(f.path, pass)
}

func keysCmd() *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "keys",
		Short: "Keystore commands",
	}

	genFlags := &keystoreFlags{}
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create a new ed25519 key and store it encrypted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := genFlags.passphrase()
			if err != nil {
				return err
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveToKeystore(genFlags.path, key, pass); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.PubKey().Address().String())
			return nil
		},
	}
	genFlags.bind(generate)

	showFlags := &keystoreFlags{}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the address held by a keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := showFlags.load()
			if err != nil {
				return err
			}
			addr := key.PubKey().Address()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", addr.String(), addr.Hex())
			return nil
		},
	}
	showFlags.bind(show)

	subCmd.AddCommand(generate)
	subCmd.AddCommand(show)
	return subCmd
}
