package commands

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	tmos "github.com/tendermint/tendermint/libs/os"

	"roundabci/privval"
	"roundabci/types"
)

// SignPayloadCmd 用本地私钥签名一个payload，输出可以直接broadcast的hex交易
var SignPayloadCmd = &cobra.Command{
	Use:   "sign-payload [registration|deploy_safe|observation|estimate|signature] [value]",
	Short: "Sign a payload with the participant key and print the hex encoded transaction",
	Long: `Sign a payload with the participant key and print the hex encoded transaction.

The value argument is the Safe contract address for deploy_safe, a number for
observation and estimate, and the signature for signature. Registration takes
no value.`,
	Args:    cobra.RangeArgs(1, 2),
	Aliases: []string{"sign_payload"},
	PreRun:  deprecateSnakeCase,
	RunE:    signPayload,
}

func signPayload(cmd *cobra.Command, args []string) error {
	keyFile := config.KeyFilePath()
	if !tmos.FileExists(keyFile) {
		return errors.Errorf("participant key file %s does not exist, run gen-key first", keyFile)
	}
	pv := privval.LoadFilePV(keyFile)

	var value string
	if len(args) > 1 {
		value = args[1]
	}
	payload, err := buildPayload(types.TxType(args[0]), pv.GetAddress(), value)
	if err != nil {
		return err
	}

	tx, err := pv.SignPayload(payload)
	if err != nil {
		return err
	}
	bz, err := types.EncodeTx(tx)
	if err != nil {
		return err
	}
	fmt.Println(tmbytes.HexBytes(bz).String())
	return nil
}

func buildPayload(txType types.TxType, sender, value string) (types.Payload, error) {
	var payload types.Payload
	switch txType {
	case types.TxTypeRegistration:
		payload = types.NewRegistrationPayload(sender)
	case types.TxTypeDeploySafe:
		payload = types.NewDeploySafePayload(sender, value)
	case types.TxTypeObservation, types.TxTypeEstimate:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %v value", txType)
		}
		if txType == types.TxTypeObservation {
			payload = types.NewObservationPayload(sender, f)
		} else {
			payload = types.NewEstimatePayload(sender, f)
		}
	case types.TxTypeSignature:
		payload = types.NewSignaturePayload(sender, value)
	default:
		return nil, errors.Wrapf(types.ErrUnknownTxType, "%q", txType)
	}
	return payload, payload.ValidateBasic()
}
