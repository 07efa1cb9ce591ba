package state

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/crypto/tmhash"

	"roundabci/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PeriodState 一个period内所有已完成round的共享结果快照
// 每次round切换都会生成新的PeriodState，旧的对象永远不会被修改
//
// Optional fields are nil until the round responsible for them has
// finished; reading them earlier returns a *StateNotSetError.
type PeriodState struct {
	participants              map[string]struct{}
	safeContractAddress       *string
	participantToObservations map[string]*types.ObservationPayload
	participantToEstimate     map[string]*types.EstimatePayload
	mostVotedEstimate         *float64
	participantToSignature    map[string]string

	leaderStrategy LeaderStrategy
}

// Option overrides one field of a PeriodState.
type Option func(*PeriodState)

func NewPeriodState(options ...Option) *PeriodState {
	ps := &PeriodState{}
	for _, opt := range options {
		opt(ps)
	}
	return ps
}

// Update returns a copy of ps with the given fields overridden.
func (ps *PeriodState) Update(options ...Option) *PeriodState {
	newState := ps.copy()
	for _, opt := range options {
		opt(newState)
	}
	return newState
}

// Reset starts a new period: the returned state keeps only the leader
// strategy of ps plus the given overrides.
func (ps *PeriodState) Reset(options ...Option) *PeriodState {
	newState := &PeriodState{leaderStrategy: ps.leaderStrategy}
	for _, opt := range options {
		opt(newState)
	}
	return newState
}

// copy 浅拷贝即可：所有map在写入时都会重新分配，不会和旧state共享可变数据
func (ps *PeriodState) copy() *PeriodState {
	return &PeriodState{
		participants:              ps.participants,
		safeContractAddress:       ps.safeContractAddress,
		participantToObservations: ps.participantToObservations,
		participantToEstimate:     ps.participantToEstimate,
		mostVotedEstimate:         ps.mostVotedEstimate,
		participantToSignature:    ps.participantToSignature,
		leaderStrategy:            ps.leaderStrategy,
	}
}

func WithParticipants(participants []string) Option {
	if len(participants) == 0 {
		panic("participants must not be empty")
	}
	set := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		set[p] = struct{}{}
	}
	return func(ps *PeriodState) {
		ps.participants = set
	}
}

func WithSafeContractAddress(address string) Option {
	return func(ps *PeriodState) {
		ps.safeContractAddress = &address
	}
}

func WithParticipantToObservations(observations map[string]*types.ObservationPayload) Option {
	m := make(map[string]*types.ObservationPayload, len(observations))
	for k, v := range observations {
		m[k] = v
	}
	return func(ps *PeriodState) {
		ps.participantToObservations = m
	}
}

func WithParticipantToEstimate(estimates map[string]*types.EstimatePayload) Option {
	m := make(map[string]*types.EstimatePayload, len(estimates))
	for k, v := range estimates {
		m[k] = v
	}
	return func(ps *PeriodState) {
		ps.participantToEstimate = m
	}
}

func WithMostVotedEstimate(estimate float64) Option {
	return func(ps *PeriodState) {
		ps.mostVotedEstimate = &estimate
	}
}

func WithParticipantToSignature(signatures map[string]string) Option {
	m := make(map[string]string, len(signatures))
	for k, v := range signatures {
		m[k] = v
	}
	return func(ps *PeriodState) {
		ps.participantToSignature = m
	}
}

func WithLeaderStrategy(strategy LeaderStrategy) Option {
	return func(ps *PeriodState) {
		ps.leaderStrategy = strategy
	}
}

// Participants returns the registered addresses in sorted order.
func (ps *PeriodState) Participants() ([]string, error) {
	if ps.participants == nil {
		return nil, &StateNotSetError{Field: "participants"}
	}
	participants := make([]string, 0, len(ps.participants))
	for p := range ps.participants {
		participants = append(participants, p)
	}
	sort.Strings(participants)
	return participants, nil
}

// IsParticipant reports false when the participant set is not known yet.
func (ps *PeriodState) IsParticipant(address string) bool {
	_, ok := ps.participants[address]
	return ok
}

func (ps *PeriodState) SafeContractAddress() (string, error) {
	if ps.safeContractAddress == nil {
		return "", &StateNotSetError{Field: "safe_contract_address"}
	}
	return *ps.safeContractAddress, nil
}

func (ps *PeriodState) ParticipantToObservations() (map[string]*types.ObservationPayload, error) {
	if ps.participantToObservations == nil {
		return nil, &StateNotSetError{Field: "participant_to_observations"}
	}
	m := make(map[string]*types.ObservationPayload, len(ps.participantToObservations))
	for k, v := range ps.participantToObservations {
		m[k] = v
	}
	return m, nil
}

func (ps *PeriodState) ParticipantToEstimate() (map[string]*types.EstimatePayload, error) {
	if ps.participantToEstimate == nil {
		return nil, &StateNotSetError{Field: "participant_to_estimate"}
	}
	m := make(map[string]*types.EstimatePayload, len(ps.participantToEstimate))
	for k, v := range ps.participantToEstimate {
		m[k] = v
	}
	return m, nil
}

func (ps *PeriodState) ParticipantToSignature() (map[string]string, error) {
	if ps.participantToSignature == nil {
		return nil, &StateNotSetError{Field: "participant_to_signature"}
	}
	m := make(map[string]string, len(ps.participantToSignature))
	for k, v := range ps.participantToSignature {
		m[k] = v
	}
	return m, nil
}

func (ps *PeriodState) MostVotedEstimate() (float64, error) {
	if ps.mostVotedEstimate == nil {
		return 0, &StateNotSetError{Field: "most_voted_estimate"}
	}
	return *ps.mostVotedEstimate, nil
}

// Observations returns the collected observations ordered by sender.
func (ps *PeriodState) Observations() ([]*types.ObservationPayload, error) {
	m, err := ps.ParticipantToObservations()
	if err != nil {
		return nil, err
	}
	senders := make([]string, 0, len(m))
	for sender := range m {
		senders = append(senders, sender)
	}
	sort.Strings(senders)

	observations := make([]*types.ObservationPayload, 0, len(senders))
	for _, sender := range senders {
		observations = append(observations, m[sender])
	}
	return observations, nil
}

// SafeSenderAddress returns the participant elected to deploy the Safe.
func (ps *PeriodState) SafeSenderAddress() (string, error) {
	participants, err := ps.Participants()
	if err != nil {
		return "", err
	}
	strategy := ps.leaderStrategy
	if strategy == nil {
		strategy = LowestAddress{}
	}
	return strategy.Leader(participants)
}

// ----- encoding -----

type periodStateJSON struct {
	Participants              []string                             `json:"participants"`
	SafeContractAddress       *string                              `json:"safe_contract_address"`
	ParticipantToObservations map[string]*types.ObservationPayload `json:"participant_to_observations"`
	ParticipantToEstimate     map[string]*types.EstimatePayload    `json:"participant_to_estimate"`
	MostVotedEstimate         *float64                             `json:"most_voted_estimate"`
	ParticipantToSignature    map[string]string                    `json:"participant_to_signature"`
}

// MarshalJSON 输出是确定的（map按key排序），可以直接用来计算hash
func (ps *PeriodState) MarshalJSON() ([]byte, error) {
	participants, _ := ps.Participants()
	return json.Marshal(periodStateJSON{
		Participants:              participants,
		SafeContractAddress:       ps.safeContractAddress,
		ParticipantToObservations: ps.participantToObservations,
		ParticipantToEstimate:     ps.participantToEstimate,
		MostVotedEstimate:         ps.mostVotedEstimate,
		ParticipantToSignature:    ps.participantToSignature,
	})
}

// UnmarshalJSON restores the data fields. The leader strategy is not part
// of the encoding and falls back to the default.
func (ps *PeriodState) UnmarshalJSON(bz []byte) error {
	var data periodStateJSON
	if err := json.Unmarshal(bz, &data); err != nil {
		return errors.Wrap(err, "unmarshal period state")
	}

	restored := NewPeriodState()
	if len(data.Participants) > 0 {
		WithParticipants(data.Participants)(restored)
	}
	restored.safeContractAddress = data.SafeContractAddress
	restored.participantToObservations = data.ParticipantToObservations
	restored.participantToEstimate = data.ParticipantToEstimate
	restored.mostVotedEstimate = data.MostVotedEstimate
	restored.participantToSignature = data.ParticipantToSignature
	*ps = *restored
	return nil
}

// Hash returns a deterministic digest of the state data.
func (ps *PeriodState) Hash() []byte {
	bz, err := ps.MarshalJSON()
	if err != nil {
		panic(fmt.Sprintf("marshal period state: %v", err))
	}
	return tmhash.Sum(bz)
}

func (ps *PeriodState) String() string {
	bz, err := ps.MarshalJSON()
	if err != nil {
		return "PeriodState{?}"
	}
	return fmt.Sprintf("PeriodState%s", bz)
}
