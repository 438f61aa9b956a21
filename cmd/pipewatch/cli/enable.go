package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davarch/pipewatch/internal/infrastructure/config"
)

var enableCmd = &cobra.Command{
	Use:   "enable <pipeline_name>",
	Short: "Enable pipeline by name in config.yaml",
	Args:  cobra.MatchAll(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args[0], true)
	},
}

func setEnabled(name string, enabled bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	changed := false
	for i := range cfg.Pipelines {
		if cfg.Pipelines[i].Name == name && cfg.Pipelines[i].Enabled != enabled {
			cfg.Pipelines[i].Enabled = enabled
			changed = true
		}
	}

	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	if !changed {
		fmt.Printf("no change (pipeline %q already %s or not found)\n", name, verb)
		return nil
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", verb, name)
	return nil
}

func pipelineNameCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	out := make([]string, 0, len(cfg.Pipelines))
	for _, p := range cfg.Pipelines {
		if p.Name == "" {
			continue
		}
		if toComplete == "" || startsWith(p.Name, toComplete) {
			out = append(out, p.Name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func startsWith(s, pref string) bool {
	if len(pref) > len(s) {
		return false
	}
	return s[:len(pref)] == pref
}

func init() {
	enableCmd.ValidArgsFunction = pipelineNameCompletion
	rootCmd.AddCommand(enableCmd)
}
