package types

import "github.com/pkg/errors"

var (
	ErrEmptySender            = errors.New("payload has no sender")
	ErrMalformedPayload       = errors.New("malformed payload")
	ErrMalformedTx            = errors.New("malformed transaction")
	ErrUnknownTxType          = errors.New("unknown transaction type")
	ErrTxTypeRegistered       = errors.New("transaction type already registered")
	ErrInvalidMaxParticipants = errors.New("max participants must be positive")
)
