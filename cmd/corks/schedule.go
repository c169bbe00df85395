package corks

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/corks"
	"github.com/smartcontractkit/corks/address"
	"github.com/smartcontractkit/corks/cellar"
)

type writeFn func(call cellar.Call) error

func buildScheduleCmd(flags *rootFlags) *cobra.Command {
	var (
		contract    string
		height      uint64
		description string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Write a cork proposal for a cellar call",
	}

	cmd.PersistentFlags().StringVar(&contract, "contract", "", "Cellar contract address, 0x-prefixed and EIP-55 checksummed when mixed case")
	cmd.PersistentFlags().Uint64Var(&height, "height", 0, "Consensus height at which the cork executes")
	cmd.PersistentFlags().StringVar(&description, "description", "", "Free text shown to endorsing validators")
	_ = cmd.MarkPersistentFlagRequired("contract")
	_ = cmd.MarkPersistentFlagRequired("height")

	write := func(call cellar.Call) error {
		target, err := address.ParseCellarID(contract)
		if err != nil {
			return err
		}

		proposal, err := corks.NewCorkProposal(target, call, height, description)
		if err != nil {
			return err
		}

		if err := writeProposal(flags.proposalPath, proposal); err != nil {
			return err
		}
		fmt.Printf("Cork %s written to %s\n", proposal.ID(), flags.proposalPath)

		return nil
	}

	cmd.AddCommand(newSetFeesDistributorCmd(write))
	cmd.AddCommand(newSetFeeCmd(write))
	cmd.AddCommand(newSetValidatorCmd(write))
	cmd.AddCommand(newTransferOwnershipCmd(write))
	cmd.AddCommand(newReinvestCmd(write))
	cmd.AddCommand(newRebalanceCmd(write))

	return cmd
}

func newSetFeesDistributorCmd(write writeFn) *cobra.Command {
	return &cobra.Command{
		Use:   "set-fees-distributor [address]",
		Short: "Set the Cosmos address the cellar bridges its fees to",
		Long:  `The address may be given in bech32 form (somm1...) or as 0x-prefixed hex.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			distributor, err := address.Parse(args[0])
			if err != nil {
				return err
			}

			return write(cellar.SetFeesDistributor{NewFeesDistributor: distributor})
		},
	}
}

func newSetFeeCmd(write writeFn) *cobra.Command {
	return &cobra.Command{
		Use:   "set-fee [fee]",
		Short: fmt.Sprintf("Set the cellar fee in 1/%d units", cellar.FeeDenominator),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fee, err := cast.ToUint16E(args[0])
			if err != nil {
				return fmt.Errorf("invalid fee %q: %w", args[0], err)
			}

			return write(cellar.SetFee{NewFee: fee})
		},
	}
}

func newSetValidatorCmd(write writeFn) *cobra.Command {
	return &cobra.Command{
		Use:   "set-validator [address] [true|false]",
		Short: "Allow or disallow an address to manage the cellar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator, err := address.ParseHex(args[0])
			if err != nil {
				return err
			}
			value, err := cast.ToBoolE(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}

			return write(cellar.SetValidator{Validator: validator, Value: value})
		},
	}
}

func newTransferOwnershipCmd(write writeFn) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer-ownership [address]",
		Short: "Transfer the cellar ownership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := address.ParseHex(args[0])
			if err != nil {
				return err
			}

			return write(cellar.TransferOwnership{NewOwner: owner})
		},
	}
}

func newReinvestCmd(write writeFn) *cobra.Command {
	return &cobra.Command{
		Use:   "reinvest",
		Short: "Reinvest the cellar's collected fees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return write(cellar.Reinvest{})
		},
	}
}

func newRebalanceCmd(write writeFn) *cobra.Command {
	var ticks []string

	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Replace the cellar's Uniswap V3 positions",
		Long:  `Each --tick is given as tokenId:tickUpper:tickLower:weight, use a tokenId of 0 to mint a new position.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			call := cellar.Rebalance{Ticks: make([]cellar.TickInfo, 0, len(ticks))}
			for _, t := range ticks {
				tick, err := parseTick(t)
				if err != nil {
					return err
				}
				call.Ticks = append(call.Ticks, tick)
			}

			return write(call)
		},
	}

	cmd.Flags().StringArrayVar(&ticks, "tick", nil, "Position as tokenId:tickUpper:tickLower:weight, repeatable")
	_ = cmd.MarkFlagRequired("tick")

	return cmd
}

func parseTick(s string) (cellar.TickInfo, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return cellar.TickInfo{}, fmt.Errorf("invalid tick %q: expected tokenId:tickUpper:tickLower:weight", s)
	}

	tokenID, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return cellar.TickInfo{}, fmt.Errorf("invalid tick %q: bad token id", s)
	}
	upper, err := cast.ToInt32E(parts[1])
	if err != nil {
		return cellar.TickInfo{}, fmt.Errorf("invalid tick %q: %w", s, err)
	}
	lower, err := cast.ToInt32E(parts[2])
	if err != nil {
		return cellar.TickInfo{}, fmt.Errorf("invalid tick %q: %w", s, err)
	}
	weight, err := cast.ToUint32E(parts[3])
	if err != nil {
		return cellar.TickInfo{}, fmt.Errorf("invalid tick %q: %w", s, err)
	}

	return cellar.TickInfo{TokenID: tokenID, TickUpper: upper, TickLower: lower, Weight: weight}, nil
}
