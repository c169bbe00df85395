package corks

import (
	"encoding/json"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/corks/config"
	"github.com/smartcontractkit/corks/store/boltdb"
	"github.com/smartcontractkit/corks/types"
)

type corkSummary struct {
	ID        string          `json:"id"`
	Seq       uint64          `json:"seq"`
	State     types.CorkState `json:"state"`
	Endorsers []string        `json:"endorsers"`
	TxHash    string          `json:"txHash,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

func buildInspectCmd(flags *rootFlags) *cobra.Command {
	var (
		states   []string
		archived bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the corks of the node store",
		Long:  `Opens the store of the configured node. The node must not be running since the store is locked while it is open.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			db, err := boltdb.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			var out []types.Cork
			collect := func(c types.Cork) error {
				if len(states) == 0 || slices.Contains(states, string(c.State)) {
					out = append(out, c)
				}

				return nil
			}
			if err := db.ForEach(collect); err != nil {
				return err
			}
			if archived {
				if err := db.ForEachArchived(collect); err != nil {
					return err
				}
			}
			slices.SortFunc(out, func(a, b types.Cork) int {
				switch {
				case a.Less(&b):
					return -1
				case b.Less(&a):
					return 1
				default:
					return 0
				}
			})

			enc := json.NewEncoder(os.Stdout)
			for _, c := range out {
				if err := enc.Encode(summarize(c)); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil, "Only list corks in these states")
	cmd.Flags().BoolVar(&archived, "archived", false, "Include executed, failed and invalidated corks")

	return cmd
}

func summarize(c types.Cork) corkSummary {
	s := corkSummary{
		ID:        c.ID.String(),
		Seq:       c.Seq,
		State:     c.State,
		Endorsers: make([]string, 0, len(c.Endorsements)),
	}
	for _, e := range c.Endorsements {
		s.Endorsers = append(s.Endorsers, e.Validator.Hex())
	}
	if c.Dispatch != nil {
		s.TxHash = c.Dispatch.TxHash.Hex()
		s.Reason = c.Dispatch.Reason
	}

	return s
}
