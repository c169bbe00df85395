package corks

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	proposalPath string
	configPath   string
	envFile      string
}

func BuildCorksCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := cobra.Command{
		Use:          "corks",
		Short:        "Schedule, endorse and execute cellar corks",
		Long:         ``,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.proposalPath, "proposal", "cork.json", "File path of the cork proposal")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "corks.yaml", "File path of the node configuration")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "File holding the PRIVATE_KEY and RPC_URL variables")

	cmd.AddCommand(buildScheduleCmd(flags))
	cmd.AddCommand(newSignPrivateKeyCmd(flags))
	cmd.AddCommand(newSignLedgerCmd(flags))
	cmd.AddCommand(buildCheckQuorumCmd(flags))
	cmd.AddCommand(buildDecodeCmd(flags))
	cmd.AddCommand(buildRunCmd(flags))
	cmd.AddCommand(buildInspectCmd(flags))

	return &cmd
}
