package commands

import (
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	cfg "roundabci/config"
	"roundabci/privval"
)

// InitFilesCmd initialises a fresh node home: config file and participant
// key.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the node home directory",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	cfg.EnsureRoot(config.RootDir)

	configFile := config.ConfigFilePath()
	if tmos.FileExists(configFile) {
		logger.Info("Found config file", "path", configFile)
	} else {
		cfg.WriteConfigFile(configFile, config)
		logger.Info("Generated config file", "path", configFile)
	}

	keyFile := config.KeyFilePath()
	if tmos.FileExists(keyFile) {
		pv := privval.LoadFilePV(keyFile)
		logger.Info("Found participant key", "keyFile", keyFile, "address", pv.GetAddress())
	} else {
		pv := privval.GenFilePV(keyFile)
		pv.Save()
		logger.Info("Generated participant key", "keyFile", keyFile, "address", pv.GetAddress())
	}

	return nil
}
