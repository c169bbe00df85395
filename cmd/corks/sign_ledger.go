package corks

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/corks"
)

func newSignLedgerCmd(flags *rootFlags) *cobra.Command {
	var derivationPath string

	cmd := &cobra.Command{
		Use:   "sign-ledger",
		Short: "Endorse a cork proposal with a ledger",
		Long:  `The ledger displays the EIP-712 domain and message hashes of the cork for confirmation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := accounts.ParseDerivationPath(derivationPath)
			if err != nil {
				return fmt.Errorf("failed to parse derivation path: %w", err)
			}

			if err := signProposal(flags.proposalPath, corks.NewLedgerSigner(path)); err != nil {
				fmt.Printf("Error signing proposal: %s\n", err)
				return err
			}
			fmt.Printf("Proposal %s endorsed\n", flags.proposalPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&derivationPath, "derivationPath", "m/44'/60'/0'/0/0", "The derivation path for the ledger")

	return cmd
}
