package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"

	"roundabci/privval"
)

var seed string

// GenKeyCmd 生成参与者签名用的公私钥对
var GenKeyCmd = &cobra.Command{
	Use:     "gen-key",
	Aliases: []string{"gen_key"},
	Args:    cobra.NoArgs,
	Short:   "Generate a new participant keypair",
	PreRun:  deprecateSnakeCase,
	RunE:    genKey,
}

func init() {
	GenKeyCmd.Flags().StringVar(&seed, "seed", "", "随机数种子，为空时随机生成私钥，只用于测试")
}

func genKey(cmd *cobra.Command, args []string) error {
	keyFile := config.KeyFilePath()
	if tmos.FileExists(keyFile) {
		logger.Info("Found participant key", "keyFile", keyFile)
		return nil
	}

	var pv *privval.FilePV
	if seed != "" {
		pv = privval.GenFilePVWithSeed(keyFile, []byte(seed))
	} else {
		pv = privval.GenFilePV(keyFile)
	}
	jsbz, err := tmjson.Marshal(pv.Key)
	if err != nil {
		return err
	}
	pv.Save()

	fmt.Printf(`%v
`, string(jsbz))
	return nil
}

// ShowAddressCmd prints the participant address of the local key.
var ShowAddressCmd = &cobra.Command{
	Use:     "show-address",
	Aliases: []string{"show_address"},
	Short:   "Show this node's participant address",
	PreRun:  deprecateSnakeCase,
	RunE: func(cmd *cobra.Command, args []string) error {
		keyFile := config.KeyFilePath()
		if !tmos.FileExists(keyFile) {
			return fmt.Errorf("participant key file %s does not exist", keyFile)
		}
		fmt.Println(privval.LoadFilePV(keyFile).GetAddress())
		return nil
	},
}
