package cli

import (
	"github.com/spf13/cobra"
)

var disableCmd = &cobra.Command{
	Use:   "disable <pipeline_name>",
	Short: "Disable pipeline by name in config.yaml",
	Args:  cobra.MatchAll(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args[0], false)
	},
}

func init() {
	disableCmd.ValidArgsFunction = pipelineNameCompletion
	rootCmd.AddCommand(disableCmd)
}
