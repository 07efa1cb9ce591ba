package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// TxType 交易类型标签，决定交易解码成哪一种payload
type TxType string

const (
	TxTypeRegistration = TxType("registration")
	TxTypeDeploySafe   = TxType("deploy_safe")
	TxTypeObservation  = TxType("observation")
	TxTypeEstimate     = TxType("estimate")
	TxTypeSignature    = TxType("signature")
)

func (t TxType) String() string {
	return string(t)
}

// Payload is a participant-authored message broadcast through the
// ordering substrate. Only the pointer variants below implement it.
type Payload interface {
	// Sender returns the participant address that authored the payload.
	Sender() string

	// TxType returns the tag used to route and decode the payload.
	TxType() TxType

	// ValidateBasic performs stateless structural checks.
	ValidateBasic() error
}

// BasePayload carries the fields shared by every payload kind.
type BasePayload struct {
	SenderAddr string `json:"sender"`
}

func (p BasePayload) Sender() string {
	return p.SenderAddr
}

func (p BasePayload) validateSender() error {
	if p.SenderAddr == "" {
		return ErrEmptySender
	}
	return nil
}

// ===== registration =====

type RegistrationPayload struct {
	BasePayload
}

func NewRegistrationPayload(sender string) *RegistrationPayload {
	return &RegistrationPayload{BasePayload{SenderAddr: sender}}
}

func (*RegistrationPayload) TxType() TxType { return TxTypeRegistration }

func (p *RegistrationPayload) ValidateBasic() error {
	return p.validateSender()
}

func (p *RegistrationPayload) String() string {
	return fmt.Sprintf("Registration{%v}", p.SenderAddr)
}

// ===== deploy safe =====

type DeploySafePayload struct {
	BasePayload
	SafeContractAddress string `json:"safe_contract_address"`
}

func NewDeploySafePayload(sender, contractAddress string) *DeploySafePayload {
	return &DeploySafePayload{
		BasePayload:         BasePayload{SenderAddr: sender},
		SafeContractAddress: contractAddress,
	}
}

func (*DeploySafePayload) TxType() TxType { return TxTypeDeploySafe }

func (p *DeploySafePayload) ValidateBasic() error {
	if err := p.validateSender(); err != nil {
		return err
	}
	if p.SafeContractAddress == "" {
		return errors.Wrap(ErrMalformedPayload, "empty safe contract address")
	}
	return nil
}

func (p *DeploySafePayload) String() string {
	return fmt.Sprintf("DeploySafe{%v %v}", p.SenderAddr, p.SafeContractAddress)
}

// ===== observation =====

type ObservationPayload struct {
	BasePayload
	Observation float64 `json:"observation"`
}

func NewObservationPayload(sender string, observation float64) *ObservationPayload {
	return &ObservationPayload{
		BasePayload: BasePayload{SenderAddr: sender},
		Observation: observation,
	}
}

func (*ObservationPayload) TxType() TxType { return TxTypeObservation }

func (p *ObservationPayload) ValidateBasic() error {
	return p.validateSender()
}

func (p *ObservationPayload) String() string {
	return fmt.Sprintf("Observation{%v %v}", p.SenderAddr, p.Observation)
}

// ===== estimate =====

type EstimatePayload struct {
	BasePayload
	Estimate float64 `json:"estimate"`
}

func NewEstimatePayload(sender string, estimate float64) *EstimatePayload {
	return &EstimatePayload{
		BasePayload: BasePayload{SenderAddr: sender},
		Estimate:    estimate,
	}
}

func (*EstimatePayload) TxType() TxType { return TxTypeEstimate }

func (p *EstimatePayload) ValidateBasic() error {
	return p.validateSender()
}

func (p *EstimatePayload) String() string {
	return fmt.Sprintf("Estimate{%v %v}", p.SenderAddr, p.Estimate)
}

// ===== signature =====

type SignaturePayload struct {
	BasePayload
	Signature string `json:"signature"`
}

func NewSignaturePayload(sender, signature string) *SignaturePayload {
	return &SignaturePayload{
		BasePayload: BasePayload{SenderAddr: sender},
		Signature:   signature,
	}
}

func (*SignaturePayload) TxType() TxType { return TxTypeSignature }

func (p *SignaturePayload) ValidateBasic() error {
	if err := p.validateSender(); err != nil {
		return err
	}
	if p.Signature == "" {
		return errors.Wrap(ErrMalformedPayload, "empty signature")
	}
	return nil
}

func (p *SignaturePayload) String() string {
	return fmt.Sprintf("Signature{%v}", p.SenderAddr)
}
