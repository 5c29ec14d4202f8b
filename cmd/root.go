package cmd

import (
	"os"

	"github.com/encodeous/trellis/state"
	"github.com/spf13/cobra"
)

var configPath = state.DefaultConfigPath

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trellis",
	Short: "Trellis SDN Topology Controller",
	Long: `Trellis discovers the links of a switch fabric and keeps a loop-free spanning forest over them.
Forwarding entries are only installed on links in the forest, every other link is blocked.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize Trellis",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "ty",
		Title: "Trellis Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "controller config")
}
