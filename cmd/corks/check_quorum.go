package corks

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/corks"
	"github.com/smartcontractkit/corks/config"
	"github.com/smartcontractkit/corks/quorum"
)

func buildCheckQuorumCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check-quorum",
		Short: "Determines whether the signatures of a cork proposal meet the configured quorum",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Checking quorum for proposal %s\n", flags.proposalPath)
			proposal, err := corks.LoadProposal(flags.proposalPath)
			if err != nil {
				fmt.Printf("Error loading proposal: %s\n", err)
				return err
			}

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				fmt.Printf("Error loading config: %s\n", err)
				return err
			}

			endorsers, err := proposal.Endorsers()
			if err != nil {
				fmt.Printf("Error recovering signers: %s\n", err)
				return err
			}
			for _, e := range endorsers {
				if !cfg.ValidatorSet.Contains(e) {
					fmt.Printf("Ignoring signature of %s, not a member of the validator set\n", e)
				}
			}

			tally := quorum.NewTally(cfg.ValidatorSet, endorsers)
			fmt.Printf("Endorsed power %s, threshold %s\n", tally, cfg.Quorum)
			if !tally.Met(cfg.Quorum) {
				fmt.Println("Endorsement quorum not met!")
				return errors.New("endorsement quorum not met")
			}
			fmt.Println("Endorsement quorum met!")

			return nil
		},
	}
}
