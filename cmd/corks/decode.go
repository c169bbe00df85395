package corks

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/corks"
	"github.com/smartcontractkit/corks/cellar"
)

func buildDecodeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "decode [payload]",
		Short: "Print the cellar call of a hex payload, or of the proposal when no payload is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			if len(args) == 1 {
				b, err := hexutil.Decode(args[0])
				if err != nil {
					return fmt.Errorf("invalid payload: %w", err)
				}
				payload = b
			} else {
				proposal, err := corks.LoadProposal(flags.proposalPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cork %s\n", proposal.ID())
				payload = proposal.Payload
			}

			call, err := cellar.Decode(payload)
			if err != nil {
				return err
			}
			selector, err := cellar.Selector(call)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(map[string]any{
				"method":   call.Method(),
				"selector": hexutil.Encode(selector),
				"args":     call,
			})
		},
	}
}
