package consensus

import (
	"roundabci/state"
	"roundabci/types"
)

// EstimateConsensusRound collects one estimate per participant and waits for
// a value shared by a two-thirds quorum.
//
// Input: participants, Safe contract address, observations.
// Output: the above plus estimates and most voted estimate.
// Next: CollectSignatureRound.
type EstimateConsensusRound struct {
	*baseRound

	participantToEstimate map[string]*types.EstimatePayload
	// 按投递顺序记录sender，平票时按首次出现的顺序选值
	senders []string
}

func NewEstimateConsensusRound(st *state.PeriodState, params types.ConsensusParams) *EstimateConsensusRound {
	r := &EstimateConsensusRound{
		baseRound:             newBaseRound(RoundEstimateConsensus, st, params),
		participantToEstimate: make(map[string]*types.EstimatePayload),
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

func (r *EstimateConsensusRound) CheckEstimate(payload *types.EstimatePayload) bool {
	if !r.state.IsParticipant(payload.Sender()) {
		return false
	}
	_, sent := r.participantToEstimate[payload.Sender()]
	return !sent
}

func (r *EstimateConsensusRound) Estimate(payload *types.EstimatePayload) {
	if !r.CheckEstimate(payload) {
		r.rejected(payload, "not a participant or estimate already sent")
		return
	}
	r.participantToEstimate[payload.Sender()] = payload
	r.senders = append(r.senders, payload.Sender())
}

// mostVoted returns the value with the highest count. Among equally voted
// values the first one delivered wins.
func (r *EstimateConsensusRound) mostVoted() (value float64, count int) {
	counts := make(map[float64]int)
	for _, sender := range r.senders {
		counts[r.participantToEstimate[sender].Estimate]++
	}
	for _, sender := range r.senders {
		v := r.participantToEstimate[sender].Estimate
		if counts[v] > count {
			value, count = v, counts[v]
		}
	}
	return value, count
}

func (r *EstimateConsensusRound) EstimateThresholdReached() bool {
	_, count := r.mostVoted()
	return count >= r.params.TwoThirdsThreshold()
}

// MostVotedEstimate returns ErrQuorumNotReached until some value is held by
// at least two thirds of the participants.
func (r *EstimateConsensusRound) MostVotedEstimate() (float64, error) {
	value, count := r.mostVoted()
	if count == 0 || count < r.params.TwoThirdsThreshold() {
		return 0, ErrQuorumNotReached
	}
	return value, nil
}

func (r *EstimateConsensusRound) EndBlock() (*state.PeriodState, Round, bool) {
	estimate, err := r.MostVotedEstimate()
	if err != nil {
		return nil, nil, false
	}
	next := r.state.Update(
		state.WithParticipantToEstimate(r.participantToEstimate),
		state.WithMostVotedEstimate(estimate),
	)
	return r.transition(next, NewCollectSignatureRound(next, r.params))
}
