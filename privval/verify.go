package privval

import (
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3/sign/schnorr"

	"roundabci/types"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSenderMismatch   = errors.New("sender does not match public key")
	ErrInvalidPubKey    = errors.New("invalid public key")
)

// Verifier checks that a transaction was authored by its payload sender.
// Rounds trust the sender field blindly, so every transaction has to pass a
// Verifier before its payload reaches one.
type Verifier interface {
	VerifyTx(tx *types.Transaction) error
}

// SchnorrVerifier verifies transactions signed by FilePV.
type SchnorrVerifier struct{}

var _ Verifier = SchnorrVerifier{}

func (SchnorrVerifier) VerifyTx(tx *types.Transaction) error {
	if tx == nil || tx.Payload == nil {
		return errors.Wrap(ErrInvalidSignature, "empty transaction")
	}
	pub := suite.Point()
	if err := pub.UnmarshalBinary(tx.PubKey); err != nil {
		return errors.Wrap(ErrInvalidPubKey, err.Error())
	}
	// rounds key participants by the exact sender string, so another spelling
	// of the same address would be a second seat for one key
	if tx.Payload.Sender() != types.AddressFromPubKey(tx.PubKey) {
		return errors.Wrapf(ErrSenderMismatch, "sender %v", tx.Payload.Sender())
	}
	signBytes, err := types.SignBytes(tx.Payload)
	if err != nil {
		return err
	}
	if err := schnorr.Verify(suite, pub, signBytes, tx.Signature); err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return nil
}
