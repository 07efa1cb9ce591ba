package state

import "strings"

// LeaderStrategy elects the participant that is allowed to deploy the Safe
// contract on behalf of the committee.
type LeaderStrategy interface {
	Leader(participants []string) (string, error)
}

// LowestAddress elects the lexicographically smallest address, compared
// case-insensitively since addresses may carry checksum casing.
//
// TOFIX: this is a temporary rule. It is fully predictable and therefore not
// Byzantine resistant; the leader should be chosen with some decentralized
// randomness instead.
type LowestAddress struct{}

func (LowestAddress) Leader(participants []string) (string, error) {
	if len(participants) == 0 {
		return "", ErrNoParticipants
	}
	leader := participants[0]
	for _, p := range participants[1:] {
		lp, ll := strings.ToLower(p), strings.ToLower(leader)
		if lp < ll || (lp == ll && p < leader) {
			leader = p
		}
	}
	return leader, nil
}
