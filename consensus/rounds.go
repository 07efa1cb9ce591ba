package consensus

import (
	"sort"

	"roundabci/state"
	"roundabci/types"
)

// ----- registration -----

// RegistrationRound collects the committee.
//
// Input: nothing. Output: a fresh period state holding the participants.
// Next: DeploySafeRound.
type RegistrationRound struct {
	*baseRound

	participants map[string]struct{}
}

func NewRegistrationRound(st *state.PeriodState, params types.ConsensusParams) *RegistrationRound {
	r := &RegistrationRound{
		baseRound:    newBaseRound(RoundRegistration, st, params),
		participants: make(map[string]struct{}),
	}
	r.handle(types.TxTypeRegistration,
		func(p types.Payload) bool {
			payload, ok := p.(*types.RegistrationPayload)
			return ok && r.CheckRegistration(payload)
		},
		func(p types.Payload) {
			if payload, ok := p.(*types.RegistrationPayload); ok {
				r.Registration(payload)
			}
		})
	return r
}

// CheckRegistration accepts any sender not registered yet while the
// committee still has free seats. The seat cap is stricter than a plain set
// add: without it a block carrying more than max_participants registrations
// would leave the round unable to ever reach len == max_participants.
func (r *RegistrationRound) CheckRegistration(payload *types.RegistrationPayload) bool {
	if _, ok := r.participants[payload.Sender()]; ok {
		return false
	}
	return len(r.participants) < r.params.MaxParticipants()
}

func (r *RegistrationRound) Registration(payload *types.RegistrationPayload) {
	if !r.CheckRegistration(payload) {
		r.rejected(payload, "already registered or committee full")
		return
	}
	r.participants[payload.Sender()] = struct{}{}
}

// Participants returns the registered addresses in sorted order.
func (r *RegistrationRound) Participants() []string {
	participants := make([]string, 0, len(r.participants))
	for p := range r.participants {
		participants = append(participants, p)
	}
	sort.Strings(participants)
	return participants
}

func (r *RegistrationRound) RegistrationThresholdReached() bool {
	return len(r.participants) == r.params.MaxParticipants()
}

func (r *RegistrationRound) EndBlock() (*state.PeriodState, Round, bool) {
	if !r.RegistrationThresholdReached() {
		return nil, nil, false
	}
	next := r.state.Reset(state.WithParticipants(r.Participants()))
	return r.transition(next, NewDeploySafeRound(next, r.params))
}

// ----- deploy safe -----

// DeploySafeRound waits for the elected participant to report the address of
// the deployed Safe contract.
//
// Input: participants. Output: participants and Safe contract address.
// Next: CollectObservationRound.
type DeploySafeRound struct {
	*baseRound

	contractAddress *string
}

func NewDeploySafeRound(st *state.PeriodState, params types.ConsensusParams) *DeploySafeRound {
	r := &DeploySafeRound{
		baseRound: newBaseRound(RoundDeploySafe, st, params),
	}
	r.handle(types.TxTypeDeploySafe,
		func(p types.Payload) bool {
			payload, ok := p.(*types.DeploySafePayload)
			return ok && r.CheckDeploySafe(payload)
		},
		func(p types.Payload) {
			if payload, ok := p.(*types.DeploySafePayload); ok {
				r.DeploySafe(payload)
			}
		})
	return r
}

// CheckDeploySafe accepts the payload only if:
// - the sender belongs to the participants
// - the sender is the elected Safe sender
// - the contract address is not set yet
func (r *DeploySafeRound) CheckDeploySafe(payload *types.DeploySafePayload) bool {
	if !r.state.IsParticipant(payload.Sender()) {
		return false
	}
	leader, err := r.state.SafeSenderAddress()
	if err != nil || leader != payload.Sender() {
		return false
	}
	return r.contractAddress == nil
}

func (r *DeploySafeRound) DeploySafe(payload *types.DeploySafePayload) {
	if !r.CheckDeploySafe(payload) {
		r.rejected(payload, "not a participant, not the elected sender or contract already set")
		return
	}
	address := payload.SafeContractAddress
	r.contractAddress = &address
}

func (r *DeploySafeRound) ContractSet() bool {
	return r.contractAddress != nil
}

func (r *DeploySafeRound) EndBlock() (*state.PeriodState, Round, bool) {
	if !r.ContractSet() {
		return nil, nil, false
	}
	next := r.state.Update(state.WithSafeContractAddress(*r.contractAddress))
	return r.transition(next, NewCollectObservationRound(next, r.params))
}

// ----- collect observation -----

// CollectObservationRound collects one observation per participant.
//
// Input: participants. Output: participants and observations.
// Next: EstimateConsensusRound.
type CollectObservationRound struct {
	*baseRound

	participantToObservations map[string]*types.ObservationPayload
}

func NewCollectObservationRound(st *state.PeriodState, params types.ConsensusParams) *CollectObservationRound {
	r := &CollectObservationRound{
		baseRound:                 newBaseRound(RoundCollectObservation, st, params),
		participantToObservations: make(map[string]*types.ObservationPayload),
	}
	r.handle(types.TxTypeObservation,
		func(p types.Payload) bool {
			payload, ok := p.(*types.ObservationPayload)
			return ok && r.CheckObservation(payload)
		},
		func(p types.Payload) {
			if payload, ok := p.(*types.ObservationPayload); ok {
				r.Observation(payload)
			}
		})
	return r
}

// CheckObservation accepts the payload only if the sender is a participant
// that has not sent its observation yet.
func (r *CollectObservationRound) CheckObservation(payload *types.ObservationPayload) bool {
	if !r.state.IsParticipant(payload.Sender()) {
		return false
	}
	_, sent := r.participantToObservations[payload.Sender()]
	return !sent
}

func (r *CollectObservationRound) Observation(payload *types.ObservationPayload) {
	if !r.CheckObservation(payload) {
		r.rejected(payload, "not a participant or observation already sent")
		return
	}
	r.participantToObservations[payload.Sender()] = payload
}

func (r *CollectObservationRound) ObservationThresholdReached() bool {
	return len(r.participantToObservations) >= r.params.TwoThirdsThreshold()
}

func (r *CollectObservationRound) EndBlock() (*state.PeriodState, Round, bool) {
	if !r.ObservationThresholdReached() {
		return nil, nil, false
	}
	next := r.state.Update(state.WithParticipantToObservations(r.participantToObservations))
	return r.transition(next, NewEstimateConsensusRound(next, r.params))
}

// ----- collect signature -----

// CollectSignatureRound collects the participants' signatures over the
// agreed estimate.
//
// Next: ConsensusReachedRound.
type CollectSignatureRound struct {
	*baseRound

	signaturesByParticipant map[string]string
}

func NewCollectSignatureRound(st *state.PeriodState, params types.ConsensusParams) *CollectSignatureRound {
	r := &CollectSignatureRound{
		baseRound:               newBaseRound(RoundCollectSignature, st, params),
		signaturesByParticipant: make(map[string]string),
	}
	r.handle(types.TxTypeSignature,
		func(p types.Payload) bool {
			payload, ok := p.(*types.SignaturePayload)
			return ok && r.CheckSignature(payload)
		},
		func(p types.Payload) {
			if payload, ok := p.(*types.SignaturePayload); ok {
				r.Signature(payload)
			}
		})
	return r
}

func (r *CollectSignatureRound) CheckSignature(payload *types.SignaturePayload) bool {
	if !r.state.IsParticipant(payload.Sender()) {
		return false
	}
	_, sent := r.signaturesByParticipant[payload.Sender()]
	return !sent
}

func (r *CollectSignatureRound) Signature(payload *types.SignaturePayload) {
	if !r.CheckSignature(payload) {
		r.rejected(payload, "not a participant or signature already sent")
		return
	}
	r.signaturesByParticipant[payload.Sender()] = payload.Signature
}

func (r *CollectSignatureRound) SignatureThresholdReached() bool {
	return len(r.signaturesByParticipant) >= r.params.TwoThirdsThreshold()
}

func (r *CollectSignatureRound) EndBlock() (*state.PeriodState, Round, bool) {
	if !r.SignatureThresholdReached() {
		return nil, nil, false
	}
	next := r.state.Update(state.WithParticipantToSignature(r.signaturesByParticipant))
	return r.transition(next, NewConsensusReachedRound(next, r.params))
}

// ----- consensus reached -----

// ConsensusReachedRound is the terminal round of a period.
//
// The estimate agreed on in EstimateConsensusRound is final. Late estimates
// are still collected in a separate accumulator that never feeds back into
// the period state.
type ConsensusReachedRound struct {
	*baseRound

	finalParticipantToEstimate map[string]*types.EstimatePayload
}

func NewConsensusReachedRound(st *state.PeriodState, params types.ConsensusParams) *ConsensusReachedRound {
	r := &ConsensusReachedRound{
		baseRound:                  newBaseRound(RoundConsensusReached, st, params),
		finalParticipantToEstimate: make(map[string]*types.EstimatePayload),
	}
	r.handle(types.TxTypeEstimate,
		func(p types.Payload) bool {
			payload, ok := p.(*types.EstimatePayload)
			return ok && r.CheckEstimate(payload)
		},
		func(p types.Payload) {
			if payload, ok := p.(*types.EstimatePayload); ok {
				r.Estimate(payload)
			}
		})
	return r
}

// CheckEstimate accepts late estimates from participants whose estimate did
// not make it into the period state.
func (r *ConsensusReachedRound) CheckEstimate(payload *types.EstimatePayload) bool {
	if !r.state.IsParticipant(payload.Sender()) {
		return false
	}
	estimates, err := r.state.ParticipantToEstimate()
	if err != nil {
		return false
	}
	if _, sent := estimates[payload.Sender()]; sent {
		return false
	}
	_, late := r.finalParticipantToEstimate[payload.Sender()]
	return !late
}

func (r *ConsensusReachedRound) Estimate(payload *types.EstimatePayload) {
	if !r.CheckEstimate(payload) {
		r.rejected(payload, "not a participant or estimate already counted")
		return
	}
	r.finalParticipantToEstimate[payload.Sender()] = payload
}

// FinalParticipantToEstimate returns a copy of the late estimates.
func (r *ConsensusReachedRound) FinalParticipantToEstimate() map[string]*types.EstimatePayload {
	m := make(map[string]*types.EstimatePayload, len(r.finalParticipantToEstimate))
	for k, v := range r.finalParticipantToEstimate {
		m[k] = v
	}
	return m
}

func (r *ConsensusReachedRound) EndBlock() (*state.PeriodState, Round, bool) {
	return nil, nil, false
}
