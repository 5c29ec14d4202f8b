package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/trellis/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// newCmd writes a starter config
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new controller config with a sample fabric",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				fmt.Printf("%s already exists, use --force to overwrite it\n", configPath)
				return
			}
		}
		out, err := sampleConfig()
		if err != nil {
			panic(err)
		}
		err = os.WriteFile(configPath, out, 0600)
		if err != nil {
			panic(err)
		}
		fmt.Printf("Wrote %s\n", configPath)
	},
	GroupID: "init",
}

// sampleConfig is a valid config with every default spelled out
func sampleConfig() ([]byte, error) {
	cfg := state.LocalCfg{
		Id: "trellis",
		Fabric: &state.FabricCfg{
			Switches: []state.SwitchId{"s1", "s2", "s3", "s4", "s5"},
			Graph: []string{
				"core = s1, s2",
				"edge = s3, s4, s5",
				"core, core",
				"core, edge",
			},
		},
	}
	state.ExpandConfig(&cfg)
	if err := state.ConfigValidator(&cfg); err != nil {
		return nil, err
	}
	return yaml.MarshalWithOptions(&cfg, yaml.WithComment(yaml.CommentMap{
		"$.entry_policy": []*yaml.Comment{
			yaml.LineComment(" optimistic marks entries as soon as they are requested, explicit waits for the switch"),
		},
		"$.port_mismatch": []*yaml.Comment{
			yaml.LineComment(" reject ignores probes whose ports disagree with the known link, refresh keeps the link alive anyway"),
		},
	}))
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config")
}
