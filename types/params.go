package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConsensusParams 共识委员会的静态参数，构造后不可修改
type ConsensusParams struct {
	maxParticipants int
}

func NewConsensusParams(maxParticipants int) (ConsensusParams, error) {
	if maxParticipants <= 0 {
		return ConsensusParams{}, errors.Wrapf(ErrInvalidMaxParticipants, "got %d", maxParticipants)
	}
	return ConsensusParams{maxParticipants: maxParticipants}, nil
}

// MaxParticipants is the expected committee size.
func (p ConsensusParams) MaxParticipants() int {
	return p.maxParticipants
}

// TwoThirdsThreshold returns ceil(2n/3).
func (p ConsensusParams) TwoThirdsThreshold() int {
	return (2*p.maxParticipants + 2) / 3
}

func (p ConsensusParams) String() string {
	return fmt.Sprintf("ConsensusParams{max:%d 2/3:%d}", p.maxParticipants, p.TwoThirdsThreshold())
}
