package privval

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/sign/schnorr"

	"roundabci/types"
)

func tempKeyFile(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", "privval_test")
	require.NoError(t, err)
	return filepath.Join(dir, "key.json"), func() { os.RemoveAll(dir) }
}

func TestSaveAndLoadFilePV(t *testing.T) {
	keyFilePath, cleanup := tempKeyFile(t)
	defer cleanup()

	filePV := GenFilePV(keyFilePath)
	filePV.Save()

	loaded, err := loadFilePV(keyFilePath)
	require.NoError(t, err)
	assert.Equal(t, filePV.Key, loaded.Key)
	assert.Equal(t, filePV.GetAddress(), loaded.GetAddress())

	again := LoadOrGenFilePV(keyFilePath)
	assert.Equal(t, filePV.GetAddress(), again.GetAddress())
}

func TestLoadFilePVMissing(t *testing.T) {
	keyFilePath, cleanup := tempKeyFile(t)
	defer cleanup()

	_, err := loadFilePV(keyFilePath)
	assert.Error(t, err)
}

func TestGenFilePVWithSeed(t *testing.T) {
	a := GenFilePVWithSeed("", []byte("seed-1"))
	b := GenFilePVWithSeed("", []byte("seed-1"))
	c := GenFilePVWithSeed("", []byte("seed-2"))

	assert.Equal(t, a.GetAddress(), b.GetAddress())
	assert.NotEqual(t, a.GetAddress(), c.GetAddress())
	assert.Equal(t, types.AddressFromPubKey(a.GetPubKey()), a.GetAddress())
}

func TestSignAndVerify(t *testing.T) {
	pv := GenFilePVWithSeed("", []byte("signer"))
	verifier := SchnorrVerifier{}

	tx, err := pv.SignPayload(types.NewObservationPayload(pv.GetAddress(), 42.5))
	require.NoError(t, err)
	assert.NoError(t, verifier.VerifyTx(tx))

	// 经过编解码之后依然可以验证
	bz, err := types.EncodeTx(tx)
	require.NoError(t, err)
	decoded, err := types.DefaultRegistry().DecodeTx(bz)
	require.NoError(t, err)
	assert.NoError(t, verifier.VerifyTx(decoded))
}

func TestSignForeignSender(t *testing.T) {
	pv := GenFilePVWithSeed("", []byte("signer"))
	_, err := pv.SignPayload(types.NewRegistrationPayload("0xDEAD"))
	assert.True(t, errors.Is(err, ErrSenderMismatch))
}

// 同一个key换一种大小写写sender，签名本身是对的，但不能通过验证
func TestVerifyRejectsRecasedSender(t *testing.T) {
	pv := GenFilePVWithSeed("", []byte("signer"))
	lower := "0x" + strings.ToLower(pv.GetAddress()[2:])
	require.NotEqual(t, pv.GetAddress(), lower)

	payload := types.NewRegistrationPayload(lower)
	signBytes, err := types.SignBytes(payload)
	require.NoError(t, err)
	sig, err := schnorr.Sign(suite, pv.priv, signBytes)
	require.NoError(t, err)

	tx := &types.Transaction{Payload: payload, PubKey: pv.GetPubKey(), Signature: sig}
	assert.True(t, errors.Is(SchnorrVerifier{}.VerifyTx(tx), ErrSenderMismatch))

	_, err = pv.SignPayload(payload)
	assert.True(t, errors.Is(err, ErrSenderMismatch))
}

func TestVerifyRejectsTampering(t *testing.T) {
	pv := GenFilePVWithSeed("", []byte("signer"))
	other := GenFilePVWithSeed("", []byte("other"))
	verifier := SchnorrVerifier{}

	tx, err := pv.SignPayload(types.NewEstimatePayload(pv.GetAddress(), 10))
	require.NoError(t, err)

	// payload changed after signing
	tampered := *tx
	tampered.Payload = types.NewEstimatePayload(pv.GetAddress(), 11)
	assert.True(t, errors.Is(verifier.VerifyTx(&tampered), ErrInvalidSignature))

	// someone else's key claiming the sender
	stolen := *tx
	stolen.PubKey = other.GetPubKey()
	assert.True(t, errors.Is(verifier.VerifyTx(&stolen), ErrSenderMismatch))

	garbage := *tx
	garbage.PubKey = []byte("not a point")
	assert.True(t, errors.Is(verifier.VerifyTx(&garbage), ErrInvalidPubKey))

	assert.True(t, errors.Is(verifier.VerifyTx(nil), ErrInvalidSignature))
}
