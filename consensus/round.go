package consensus

import (
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"

	"roundabci/state"
	"roundabci/types"
)

// RoundID 状态机节点的稳定标识，对外暴露给behaviour层
type RoundID string

const (
	RoundRegistration       = RoundID("registration")
	RoundDeploySafe         = RoundID("deploy_safe")
	RoundCollectObservation = RoundID("collect_observation")
	RoundEstimateConsensus  = RoundID("estimate_consensus")
	RoundCollectSignature   = RoundID("collect_signature")
	RoundConsensusReached   = RoundID("consensus_reached")
)

func (id RoundID) String() string {
	return string(id)
}

var (
	ErrQuorumNotReached = errors.New("quorum not reached")
	ErrUnknownRound     = errors.New("unknown round")
)

// Round is one node of the period state machine.
//
// A round is bound to the PeriodState it was created with, accumulates the
// payloads delivered during its lifetime and, at each block boundary, decides
// whether the period moves on.
type Round interface {
	RoundID() RoundID

	// State returns the input state the round was constructed with.
	State() *state.PeriodState

	// Check reports whether Process would accept the payload. It has no side
	// effects.
	Check(payload types.Payload) bool

	// Process applies the payload. Rejected payloads are ignored.
	Process(payload types.Payload)

	// EndBlock returns the next state and round once the round condition
	// holds. ok is false when there is no transition.
	EndBlock() (next *state.PeriodState, nextRound Round, ok bool)

	SetLogger(logger log.Logger)
}

// payloadHandler is one entry of a round dispatch table.
type payloadHandler struct {
	check func(types.Payload) bool
	apply func(types.Payload)
}

type baseRound struct {
	roundID  RoundID
	state    *state.PeriodState
	params   types.ConsensusParams
	handlers map[types.TxType]payloadHandler

	rootLogger log.Logger
	logger     log.Logger
}

func newBaseRound(id RoundID, st *state.PeriodState, params types.ConsensusParams) *baseRound {
	return &baseRound{
		roundID:    id,
		state:      st,
		params:     params,
		handlers:   make(map[types.TxType]payloadHandler),
		rootLogger: log.NewNopLogger(),
		logger:     log.NewNopLogger(),
	}
}

func (r *baseRound) RoundID() RoundID {
	return r.roundID
}

func (r *baseRound) State() *state.PeriodState {
	return r.state
}

func (r *baseRound) SetLogger(logger log.Logger) {
	r.rootLogger = logger
	r.logger = logger.With("round", string(r.roundID))
}

func (r *baseRound) handle(txType types.TxType, check func(types.Payload) bool, apply func(types.Payload)) {
	r.handlers[txType] = payloadHandler{check: check, apply: apply}
}

func (r *baseRound) Check(payload types.Payload) bool {
	if payload == nil {
		return false
	}
	h, ok := r.handlers[payload.TxType()]
	if !ok {
		return false
	}
	return h.check(payload)
}

func (r *baseRound) Process(payload types.Payload) {
	if payload == nil {
		return
	}
	h, ok := r.handlers[payload.TxType()]
	if !ok {
		r.logger.Debug("round does not accept payload kind", "type", payload.TxType(), "sender", payload.Sender())
		return
	}
	h.apply(payload)
}

func (r *baseRound) rejected(payload types.Payload, reason string) {
	r.logger.Debug("payload rejected", "type", payload.TxType(), "sender", payload.Sender(), "reason", reason)
}

// transition 把子round的logger继承给下一个round
func (r *baseRound) transition(next *state.PeriodState, nextRound Round) (*state.PeriodState, Round, bool) {
	nextRound.SetLogger(r.rootLogger)
	r.logger.Info("round finished", "next", nextRound.RoundID())
	return next, nextRound, true
}

// NewRound builds an empty round of the given kind bound to st.
func NewRound(id RoundID, st *state.PeriodState, params types.ConsensusParams) (Round, error) {
	switch id {
	case RoundRegistration:
		return NewRegistrationRound(st, params), nil
	case RoundDeploySafe:
		return NewDeploySafeRound(st, params), nil
	case RoundCollectObservation:
		return NewCollectObservationRound(st, params), nil
	case RoundEstimateConsensus:
		return NewEstimateConsensusRound(st, params), nil
	case RoundCollectSignature:
		return NewCollectSignatureRound(st, params), nil
	case RoundConsensusReached:
		return NewConsensusReachedRound(st, params), nil
	default:
		return nil, errors.Wrapf(ErrUnknownRound, "%q", id)
	}
}
