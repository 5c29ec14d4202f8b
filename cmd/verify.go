package cmd

import (
	"fmt"

	"github.com/encodeous/trellis/core"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates the config and prints the cabling it describes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := core.ReadConfig(configPath)
		if err != nil {
			panic(err)
		}
		if cfg.Fabric == nil {
			panic("config has no fabric")
		}
		cables, err := cfg.Fabric.Cables()
		if err != nil {
			panic(err)
		}

		cfgYaml, err := yaml.Marshal(cfg)
		if err != nil {
			panic(err)
		}
		fmt.Println("Config is valid")
		fmt.Println(string(cfgYaml))
		fmt.Printf("%d switches, %d cables:\n", len(cfg.Fabric.Switches), len(cables))
		for _, c := range cables {
			fmt.Printf(" - %s <-> %s\n", c.V1, c.V2)
		}
	},
	GroupID: "ty",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
