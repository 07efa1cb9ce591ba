package privval

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"

	"roundabci/types"
)

// 所有参与者共用同一个suite：edwards25519 + blake2 xof
var suite = edwards25519.NewBlakeSHA256Ed25519()

//-------------------------------------------------------------------------------

// FilePVKey stores the key pair of a participant.
type FilePVKey struct {
	Address string           `json:"address"`
	PubKey  tmbytes.HexBytes `json:"pub_key"`
	PrivKey tmbytes.HexBytes `json:"priv_key"`

	filePath string
}

// Save persists the FilePVKey to its filePath.
func (pvKey FilePVKey) Save() {
	outFile := pvKey.filePath
	if outFile == "" {
		panic("cannot save participant key: filePath not set")
	}

	jsonBytes, err := tmjson.MarshalIndent(pvKey, "", "  ")
	if err != nil {
		panic(err)
	}
	err = tempfile.WriteFileAtomic(outFile, jsonBytes, 0600)
	if err != nil {
		panic(err)
	}
}

//-------------------------------------------------------------------------------

// FilePV signs payloads with a Schnorr key persisted to disk.
// NOTE: the directory containing the key file must already exist.
type FilePV struct {
	Key FilePVKey

	priv kyber.Scalar
}

// NewFilePV builds a signer from the given private scalar.
func NewFilePV(priv kyber.Scalar, keyFilePath string) *FilePV {
	pub := suite.Point().Mul(priv, nil)
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		panic(err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return &FilePV{
		Key: FilePVKey{
			Address:  types.AddressFromPubKey(pubBytes),
			PubKey:   pubBytes,
			PrivKey:  privBytes,
			filePath: keyFilePath,
		},
		priv: priv,
	}
}

// GenFilePV generates a signer with a random key but does not call Save().
func GenFilePV(keyFilePath string) *FilePV {
	pair := key.NewKeyPair(suite)
	return NewFilePV(pair.Private, keyFilePath)
}

// GenFilePVWithSeed derives the key from seed. Only meant for tests and local
// clusters.
func GenFilePVWithSeed(keyFilePath string, seed []byte) *FilePV {
	priv := suite.Scalar().Pick(suite.XOF(seed))
	return NewFilePV(priv, keyFilePath)
}

// LoadFilePV loads a FilePV from keyFilePath. If the file does not exist or
// is corrupted, the program will exit.
func LoadFilePV(keyFilePath string) *FilePV {
	pv, err := loadFilePV(keyFilePath)
	if err != nil {
		tmos.Exit(err.Error())
	}
	return pv
}

func loadFilePV(keyFilePath string) (*FilePV, error) {
	keyJSONBytes, err := ioutil.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := FilePVKey{}
	if err := tmjson.Unmarshal(keyJSONBytes, &pvKey); err != nil {
		return nil, errors.Wrapf(err, "reading participant key from %v", keyFilePath)
	}

	priv := suite.Scalar()
	if err := priv.UnmarshalBinary(pvKey.PrivKey); err != nil {
		return nil, errors.Wrapf(err, "decoding private key from %v", keyFilePath)
	}

	// overwrite pubkey and address for convenience
	pv := NewFilePV(priv, keyFilePath)
	return pv, nil
}

// LoadOrGenFilePV loads a FilePV from the given path or else generates a new
// one and saves it there.
func LoadOrGenFilePV(keyFilePath string) *FilePV {
	var pv *FilePV
	if tmos.FileExists(keyFilePath) {
		pv = LoadFilePV(keyFilePath)
	} else {
		pv = GenFilePV(keyFilePath)
		pv.Save()
	}
	return pv
}

// GetAddress returns the participant address derived from the public key.
func (pv *FilePV) GetAddress() string {
	return pv.Key.Address
}

func (pv *FilePV) GetPubKey() tmbytes.HexBytes {
	return pv.Key.PubKey
}

// SignPayload signs the canonical bytes of payload and wraps both into a
// transaction ready to be broadcast.
func (pv *FilePV) SignPayload(payload types.Payload) (*types.Transaction, error) {
	if payload.Sender() != pv.GetAddress() {
		return nil, errors.Wrapf(ErrSenderMismatch, "payload sender %v, key %v", payload.Sender(), pv.GetAddress())
	}
	signBytes, err := types.SignBytes(payload)
	if err != nil {
		return nil, err
	}
	sig, err := schnorr.Sign(suite, pv.priv, signBytes)
	if err != nil {
		return nil, errors.Wrap(err, "error signing payload")
	}
	return &types.Transaction{
		Payload:   payload,
		PubKey:    pv.GetPubKey(),
		Signature: sig,
	}, nil
}

// Save persists the FilePV to disk.
func (pv *FilePV) Save() {
	pv.Key.Save()
}

// String returns a string representation of the FilePV.
func (pv *FilePV) String() string {
	return fmt.Sprintf("FilePV{%v}", pv.GetAddress())
}
