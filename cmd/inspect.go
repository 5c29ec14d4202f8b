package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/encodeous/trellis/core"
	"github.com/encodeous/trellis/state"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect [addr]",
	Aliases: []string{"i"},
	Short:   "Inspects the topology of a running controller",
	Long:    `Fetches the topology from the debug address of a running controller. Without an address, the debug_addr of the config is used.`,
	Run: func(cmd *cobra.Command, args []string) {
		addr := state.DefaultDebugAddr
		if len(args) == 1 {
			addr = args[0]
		} else if cfg, err := core.ReadConfig(configPath); err == nil {
			addr = cfg.DebugAddr
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result, err := core.IPCGet(ctx, addr)
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		fmt.Print(result)
	},
	Args:    cobra.MaximumNArgs(1),
	GroupID: "ty",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
