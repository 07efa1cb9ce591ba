package commands

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	abcitypes "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/events"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/libs/log"
	tmproto "github.com/tendermint/tendermint/proto/tendermint/types"

	"roundabci/app"
	"roundabci/types"
)

// ReplayCmd 把交易日志重新投递给一个全新的driver，用来恢复或者核对状态
var ReplayCmd = &cobra.Command{
	Use:   "replay [tx-log]",
	Short: "Re-deliver a transaction log to a fresh driver and print the resulting round and state hash",
	Long: `Re-deliver a transaction log to a fresh driver and print the resulting round and state hash.

The log holds one hex encoded transaction per line. An empty line closes a
block, so consecutive empty lines stand for empty blocks and heights follow
the log from 1. Each block is followed by a commit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		params, err := types.NewConsensusParams(config.Consensus.MaxParticipants)
		if err != nil {
			return err
		}
		_, err = replayTxLog(f, params, cmd.OutOrStdout(), logger.With("module", "replay"))
		return err
	},
}

func replayTxLog(r io.Reader, params types.ConsensusParams, out io.Writer, logger log.Logger) (*app.Driver, error) {
	evsw := events.NewEventSwitch()
	if err := evsw.Start(); err != nil {
		return nil, err
	}
	defer evsw.Stop() // nolint: errcheck

	err := evsw.AddListenerForEvent("replay", app.EventRoundTransition, func(data events.EventData) {
		td := data.(app.TransitionData)
		fmt.Fprintf(out, "height %d: %v -> %v\n", td.Height, td.From, td.To)
	})
	if err != nil {
		return nil, err
	}

	driver := app.NewDriver(params, app.WithEventSwitch(evsw))
	driver.SetLogger(logger)
	application, err := app.NewApplication(driver, types.DefaultRegistry(), 1)
	if err != nil {
		return nil, err
	}
	application.SetLogger(logger)

	var (
		height  int64
		pending [][]byte
	)
	commit := func() {
		height++
		application.BeginBlock(abcitypes.RequestBeginBlock{Header: tmproto.Header{Height: height}})
		for _, tx := range pending {
			res := application.DeliverTx(abcitypes.RequestDeliverTx{Tx: tx})
			if res.Code != app.CodeTypeOK {
				logger.Info("tx not applied", "height", height, "code", res.Code, "log", res.Log)
			}
		}
		application.EndBlock(abcitypes.RequestEndBlock{Height: height})
		application.Commit()
		pending = pending[:0]
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			commit()
			continue
		}
		bz, err := hex.DecodeString(text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		pending = append(pending, bz)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// the last block may end at EOF without an empty line
	if len(pending) > 0 {
		commit()
	}

	fmt.Fprintf(out, "round: %v\nstate hash: %v\n", driver.CurrentRoundID(), tmbytes.HexBytes(driver.LatestState().Hash()))
	return driver, nil
}
