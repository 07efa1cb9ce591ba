package types

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Transaction 是经过签名的payload，也是共识层排序的基本单位
type Transaction struct {
	Payload   Payload
	PubKey    tmbytes.HexBytes
	Signature tmbytes.HexBytes
}

type txWire struct {
	Type      TxType              `json:"type"`
	Payload   jsoniter.RawMessage `json:"payload"`
	PubKey    tmbytes.HexBytes    `json:"pub_key"`
	Signature tmbytes.HexBytes    `json:"signature"`
}

type signDoc struct {
	Type    TxType  `json:"type"`
	Payload Payload `json:"payload"`
}

// SignBytes returns the canonical bytes a sender signs for a payload.
func SignBytes(p Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.Wrap(ErrMalformedPayload, "nil payload")
	}
	return json.Marshal(signDoc{Type: p.TxType(), Payload: p})
}

func EncodeTx(tx *Transaction) ([]byte, error) {
	if tx == nil || tx.Payload == nil {
		return nil, errors.Wrap(ErrMalformedTx, "nil payload")
	}
	payload, err := json.Marshal(tx.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	return json.Marshal(txWire{
		Type:      tx.Payload.TxType(),
		Payload:   payload,
		PubKey:    tx.PubKey,
		Signature: tx.Signature,
	})
}

// DecodeTx 根据交易类型标签在registry中找到对应的payload并解码
// 解码失败的交易不会进入任何round
func (r *Registry) DecodeTx(bz []byte) (*Transaction, error) {
	var wire txWire
	if err := json.Unmarshal(bz, &wire); err != nil {
		return nil, errors.Wrap(ErrMalformedTx, err.Error())
	}
	factory, err := r.Lookup(wire.Type)
	if err != nil {
		return nil, err
	}
	payload := factory()
	if err := json.Unmarshal(wire.Payload, payload); err != nil {
		return nil, errors.Wrapf(ErrMalformedTx, "decode %v payload: %v", wire.Type, err)
	}
	if err := payload.ValidateBasic(); err != nil {
		return nil, errors.Wrap(ErrMalformedTx, err.Error())
	}
	return &Transaction{
		Payload:   payload,
		PubKey:    wire.PubKey,
		Signature: wire.Signature,
	}, nil
}

// TxHash is the key used to cache and journal raw transactions.
func TxHash(bz []byte) []byte {
	return tmhash.Sum(bz)
}
