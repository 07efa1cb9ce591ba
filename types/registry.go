package types

import (
	"sort"

	"github.com/pkg/errors"
)

// PayloadFactory returns an empty payload ready to be decoded into.
type PayloadFactory func() Payload

// Registry maps transaction type tags to payload factories.
//
// Registrations are kept in a stack of scopes: Push opens a new scope and
// Pop discards everything registered since the matching Push, which lets
// tests register throwaway kinds without leaking them.
type Registry struct {
	scopes []map[TxType]PayloadFactory
}

func NewRegistry() *Registry {
	return &Registry{
		scopes: []map[TxType]PayloadFactory{make(map[TxType]PayloadFactory)},
	}
}

// DefaultRegistry returns a registry holding every built-in payload kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.mustRegister(TxTypeRegistration, func() Payload { return &RegistrationPayload{} })
	r.mustRegister(TxTypeDeploySafe, func() Payload { return &DeploySafePayload{} })
	r.mustRegister(TxTypeObservation, func() Payload { return &ObservationPayload{} })
	r.mustRegister(TxTypeEstimate, func() Payload { return &EstimatePayload{} })
	r.mustRegister(TxTypeSignature, func() Payload { return &SignaturePayload{} })
	return r
}

// Register adds a factory to the innermost scope.
func (r *Registry) Register(txType TxType, factory PayloadFactory) error {
	if factory == nil {
		return errors.Errorf("nil factory for %v", txType)
	}
	if _, err := r.Lookup(txType); err == nil {
		return errors.Wrapf(ErrTxTypeRegistered, "%v", txType)
	}
	r.scopes[len(r.scopes)-1][txType] = factory
	return nil
}

func (r *Registry) mustRegister(txType TxType, factory PayloadFactory) {
	if err := r.Register(txType, factory); err != nil {
		panic(err)
	}
}

// Lookup searches the scopes from the innermost outwards.
func (r *Registry) Lookup(txType TxType) (PayloadFactory, error) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if factory, ok := r.scopes[i][txType]; ok {
			return factory, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownTxType, "%q", txType)
}

// Push opens a new registration scope.
func (r *Registry) Push() {
	r.scopes = append(r.scopes, make(map[TxType]PayloadFactory))
}

// Pop drops the innermost scope. Popping the base scope clears it instead.
func (r *Registry) Pop() {
	if len(r.scopes) == 1 {
		r.scopes[0] = make(map[TxType]PayloadFactory)
		return
	}
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// TxTypes returns every visible tag in sorted order.
func (r *Registry) TxTypes() []TxType {
	seen := make(map[TxType]struct{})
	for _, scope := range r.scopes {
		for t := range scope {
			seen[t] = struct{}{}
		}
	}
	txTypes := make([]TxType, 0, len(seen))
	for t := range seen {
		txTypes = append(txTypes, t)
	}
	sort.Slice(txTypes, func(i, j int) bool { return txTypes[i] < txTypes[j] })
	return txTypes
}
