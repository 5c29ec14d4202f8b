package cmd

import (
	"github.com/encodeous/trellis/core"
	"github.com/encodeous/trellis/state"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run trellis",
	Long:  `This will run the controller against the fabric described in the config until it receives SIGINT or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		core.Bootstrap(configPath, logPath, verbose)
	},
	GroupID: "ty",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().String("log", "", "Also write logs to this file")
	runCmd.Flags().BoolVarP(&state.DBG_log_topology, "ltopo", "t", false, "Write topology events to console")
	runCmd.Flags().BoolVarP(&state.DBG_log_probe, "lprobe", "p", false, "Write probes to console")
	runCmd.Flags().BoolVarP(&state.DBG_check_forest, "check", "k", false, "Validate the forest after every change, panics on violation")
}
