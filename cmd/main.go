package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tendermint/tendermint/libs/cli"

	cmd "roundabci/cmd/commands"
	cfg "roundabci/config"
	nm "roundabci/node"
)

func main() {
	rootCmd := cmd.RootCmd
	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.GenKeyCmd,
		cmd.ShowAddressCmd,
		cmd.SignPayloadCmd,
		cmd.ReplayCmd,
		cli.NewCompletionCmd(rootCmd, true),
	)

	// NOTE:
	// Users wishing to plug in their own verifier or initial state can copy
	// this file and provide something other than DefaultNewNode, e.g. a
	// Provider that calls nm.NewNode with extra driver options.
	nodeFunc := nm.DefaultNewNode

	// Create & start node
	rootCmd.AddCommand(cmd.NewRunNodeCmd(nodeFunc))

	cmd := cli.PrepareBaseCmd(rootCmd, "RABCI", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultHomeDir)))
	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
