package corks

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/corks"
)

func newSignPrivateKeyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-raw-private-key",
		Short: "Endorse a cork proposal with a raw private key",
		Long:  `Configure a private key in a .env file (using the PRIVATE_KEY var) and endorse a cork proposal with it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := loadPrivateKey(flags.envFile)
			if err != nil {
				fmt.Printf("Error loading private key: %s\n", err)
				return err
			}

			signer := corks.NewPrivateKeySigner(pk)
			if err := signProposal(flags.proposalPath, signer); err != nil {
				fmt.Printf("Error signing proposal: %s\n", err)
				return err
			}

			addr, _ := signer.GetAddress()
			fmt.Printf("Proposal %s endorsed by %s\n", flags.proposalPath, addr)

			return nil
		},
	}
}
