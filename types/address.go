package types

import (
	"fmt"

	"github.com/tendermint/tendermint/crypto/tmhash"
)

// AddressFromPubKey derives a participant address from marshalled public
// key bytes: 0x followed by the upper-case hex of the truncated hash.
func AddressFromPubKey(pubKey []byte) string {
	return fmt.Sprintf("0x%X", tmhash.SumTruncated(pubKey))
}
