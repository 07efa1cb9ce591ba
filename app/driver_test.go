package app

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/schnorr"

	"roundabci/consensus"
	"roundabci/privval"
	"roundabci/state"
	"roundabci/types"
)

func getTestLogWithDebug() log.Logger {
	return log.NewFilter(log.TestingLogger(), log.AllowDebug())
}

// testSigners 生成count个确定性的参与者，返回的leader是LowestAddress选出的那个
func testSigners(t *testing.T, count int) ([]*privval.FilePV, *privval.FilePV) {
	signers := make([]*privval.FilePV, count)
	addresses := make([]string, count)
	for i := range signers {
		signers[i] = privval.GenFilePVWithSeed("", []byte(fmt.Sprintf("participant-%d", i)))
		addresses[i] = signers[i].GetAddress()
	}
	leaderAddr, err := state.LowestAddress{}.Leader(addresses)
	require.NoError(t, err)
	for _, s := range signers {
		if s.GetAddress() == leaderAddr {
			return signers, s
		}
	}
	t.Fatal("leader not found")
	return nil, nil
}

func newTestDriver(t *testing.T, n int, options ...DriverOption) *Driver {
	params, err := types.NewConsensusParams(n)
	require.NoError(t, err)
	d := NewDriver(params, options...)
	d.SetLogger(getTestLogWithDebug())
	return d
}

func signTx(t *testing.T, pv *privval.FilePV, payload types.Payload) *types.Transaction {
	tx, err := pv.SignPayload(payload)
	require.NoError(t, err)
	return tx
}

func TestDriverStartsAtRegistration(t *testing.T) {
	d := newTestDriver(t, 3)

	assert.Equal(t, consensus.RoundRegistration, d.CurrentRoundID())
	assert.Empty(t, d.History())
	assert.EqualValues(t, 0, d.Height())

	// no transition yet, the app hash is the hash of the empty state
	assert.Equal(t, state.NewPeriodState().Hash(), d.Commit())
	assert.Equal(t, consensus.RoundRegistration, d.CurrentRoundID())
}

func TestDriverCheckHasNoSideEffects(t *testing.T) {
	d := newTestDriver(t, 1)
	payload := types.NewRegistrationPayload("0xA")

	assert.True(t, d.Check(payload))
	assert.True(t, d.Check(payload))
	d.Commit()
	assert.Equal(t, consensus.RoundRegistration, d.CurrentRoundID())

	assert.True(t, d.Deliver(payload))
	assert.False(t, d.Deliver(payload))
	d.Commit()
	assert.Equal(t, consensus.RoundDeploySafe, d.CurrentRoundID())
}

func TestDriverFullPeriod(t *testing.T) {
	evsw := events.NewEventSwitch()
	require.NoError(t, evsw.Start())
	defer evsw.Stop() // nolint: errcheck

	var transitions []TransitionData
	require.NoError(t, evsw.AddListenerForEvent("test", EventRoundTransition, func(data events.EventData) {
		transitions = append(transitions, data.(TransitionData))
	}))

	signers, leader := testSigners(t, 3)
	d := newTestDriver(t, 3, WithEventSwitch(evsw))

	deliverAll := func(height int64, payloads func(pv *privval.FilePV) types.Payload, pvs []*privval.FilePV) []byte {
		d.BeginBlock(height)
		for _, pv := range pvs {
			require.NoError(t, d.DeliverTx(signTx(t, pv, payloads(pv))))
		}
		return d.Commit()
	}

	deliverAll(1, func(pv *privval.FilePV) types.Payload {
		return types.NewRegistrationPayload(pv.GetAddress())
	}, signers)
	assert.Equal(t, consensus.RoundDeploySafe, d.CurrentRoundID())

	deliverAll(2, func(pv *privval.FilePV) types.Payload {
		return types.NewDeploySafePayload(pv.GetAddress(), "0xSAFE")
	}, []*privval.FilePV{leader})
	assert.Equal(t, consensus.RoundCollectObservation, d.CurrentRoundID())

	deliverAll(3, func(pv *privval.FilePV) types.Payload {
		return types.NewObservationPayload(pv.GetAddress(), 1.0)
	}, signers[:2])
	assert.Equal(t, consensus.RoundEstimateConsensus, d.CurrentRoundID())

	deliverAll(4, func(pv *privval.FilePV) types.Payload {
		return types.NewEstimatePayload(pv.GetAddress(), 7.5)
	}, signers)
	assert.Equal(t, consensus.RoundCollectSignature, d.CurrentRoundID())

	appHash := deliverAll(5, func(pv *privval.FilePV) types.Payload {
		return types.NewSignaturePayload(pv.GetAddress(), "sig-"+pv.GetAddress())
	}, signers[1:])
	assert.Equal(t, consensus.RoundConsensusReached, d.CurrentRoundID())

	latest := d.LatestState()
	assert.Equal(t, latest.Hash(), appHash)
	estimate, err := latest.MostVotedEstimate()
	require.NoError(t, err)
	assert.Equal(t, 7.5, estimate)

	history := d.History()
	require.Len(t, history, 5)
	assert.Equal(t, consensus.RoundRegistration, history[0].RoundID())
	assert.Equal(t, consensus.RoundCollectSignature, history[4].RoundID())

	require.Len(t, transitions, 5)
	for i, data := range transitions {
		assert.EqualValues(t, i+1, data.Height)
		assert.False(t, data.OutOfBand)
		assert.Equal(t, history[i].RoundID(), data.From)
	}
	assert.Equal(t, consensus.RoundConsensusReached, transitions[4].To)
	assert.Equal(t, appHash, transitions[4].AppHash)

	// terminal round stays put
	d.Commit()
	assert.Equal(t, consensus.RoundConsensusReached, d.CurrentRoundID())
}

func TestDriverRejectsUnauthenticated(t *testing.T) {
	signers, _ := testSigners(t, 2)
	d := newTestDriver(t, 2)

	tx := signTx(t, signers[0], types.NewRegistrationPayload(signers[0].GetAddress()))
	forged := *tx
	forged.Payload = types.NewRegistrationPayload(signers[1].GetAddress())

	err := d.CheckTx(&forged)
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	err = d.DeliverTx(&forged)
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	// the forged payload never reached the round
	round, _ := d.CurrentRound()
	registration := round.(*consensus.RegistrationRound)
	assert.Empty(t, registration.Participants())

	require.NoError(t, d.CheckTx(tx))
	require.NoError(t, d.DeliverTx(tx))
	assert.Len(t, registration.Participants(), 1)

	err = d.DeliverTx(tx)
	assert.True(t, errors.Is(err, ErrPayloadRejected))
}

// signRecased signs payload with pv's key without the sender check SignPayload
// does, the way a participant running its own client could.
func signRecased(t *testing.T, priv kyber.Scalar, pv *privval.FilePV, payload types.Payload) *types.Transaction {
	signBytes, err := types.SignBytes(payload)
	require.NoError(t, err)
	sig, err := schnorr.Sign(edwards25519.NewBlakeSHA256Ed25519(), priv, signBytes)
	require.NoError(t, err)
	return &types.Transaction{Payload: payload, PubKey: pv.GetPubKey(), Signature: sig}
}

func TestDriverOneSeatPerKey(t *testing.T) {
	suite := edwards25519.NewBlakeSHA256Ed25519()
	priv := suite.Scalar().Pick(suite.XOF([]byte("one-key")))
	pv := privval.NewFilePV(priv, "")
	addr := pv.GetAddress()
	lower := "0x" + strings.ToLower(addr[2:])
	require.NotEqual(t, addr, lower)

	d := newTestDriver(t, 2)
	recased := signRecased(t, priv, pv, types.NewRegistrationPayload(lower))

	err := d.CheckTx(recased)
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.True(t, errors.Is(err, privval.ErrSenderMismatch))
	err = d.DeliverTx(recased)
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.True(t, errors.Is(err, privval.ErrSenderMismatch))

	require.NoError(t, d.DeliverTx(signRecased(t, priv, pv, types.NewRegistrationPayload(addr))))
	assert.True(t, errors.Is(d.DeliverTx(recased), privval.ErrSenderMismatch))
	d.Commit()

	round, _ := d.CurrentRound()
	require.Equal(t, consensus.RoundRegistration, round.RoundID())
	assert.Equal(t, []string{addr}, round.(*consensus.RegistrationRound).Participants())
}

type alwaysFail struct{}

func (alwaysFail) VerifyTx(*types.Transaction) error {
	return privval.ErrInvalidSignature
}

func TestDriverCustomVerifier(t *testing.T) {
	signers, _ := testSigners(t, 1)
	d := newTestDriver(t, 1, WithVerifier(alwaysFail{}))

	err := d.CheckTx(signTx(t, signers[0], types.NewRegistrationPayload(signers[0].GetAddress())))
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.True(t, errors.Is(err, privval.ErrInvalidSignature))
}

func TestDriverForceTransition(t *testing.T) {
	evsw := events.NewEventSwitch()
	require.NoError(t, evsw.Start())
	defer evsw.Stop() // nolint: errcheck

	fired := make(chan TransitionData, 1)
	require.NoError(t, evsw.AddListenerForEvent("test", EventRoundTransition, func(data events.EventData) {
		fired <- data.(TransitionData)
	}))

	d := newTestDriver(t, 3, WithEventSwitch(evsw))
	d.BeginBlock(7)

	st := state.NewPeriodState(state.WithParticipants([]string{"0xA", "0xB", "0xC"}))
	next, err := consensus.NewRound(consensus.RoundCollectObservation, st, d.Params())
	require.NoError(t, err)
	d.ForceTransition(next)

	round, latest := d.CurrentRound()
	assert.Equal(t, consensus.RoundCollectObservation, round.RoundID())
	assert.Equal(t, st, latest)
	require.Len(t, d.History(), 1)
	assert.Equal(t, consensus.RoundRegistration, d.History()[0].RoundID())

	data := <-fired
	assert.True(t, data.OutOfBand)
	assert.EqualValues(t, 7, data.Height)
	assert.Equal(t, consensus.RoundRegistration, data.From)
	assert.Equal(t, consensus.RoundCollectObservation, data.To)

	snapshot := d.metric.snapshot()
	assert.EqualValues(t, 1, snapshot.ForcedTransitions)
	assert.EqualValues(t, 1, snapshot.Rounds["round.registration.forced"])
	assert.Equal(t, "collect_observation", snapshot.CurrentRound)

	// the forced round works like any other
	assert.True(t, d.Deliver(types.NewObservationPayload("0xA", 1)))
	assert.True(t, d.Deliver(types.NewObservationPayload("0xB", 1)))
	d.Commit()
	assert.Equal(t, consensus.RoundEstimateConsensus, d.CurrentRoundID())
}

func TestDriverInitialState(t *testing.T) {
	st := state.NewPeriodState(state.WithLeaderStrategy(state.LowestAddress{}))
	d := newTestDriver(t, 1, WithInitialState(st))
	assert.Equal(t, st, d.LatestState())
}

func TestDriverMetricJSON(t *testing.T) {
	d := newTestDriver(t, 1)
	d.Check(types.NewRegistrationPayload("0xA"))
	d.Deliver(types.NewRegistrationPayload("0xA"))
	d.Deliver(types.NewRegistrationPayload("0xA"))
	d.BeginBlock(3)
	d.Commit()

	var snapshot driverMetricSnapshot
	require.NoError(t, json.Unmarshal([]byte(d.Metric().JSONString()), &snapshot))
	assert.EqualValues(t, 1, snapshot.CheckedTx)
	assert.EqualValues(t, 2, snapshot.DeliveredTx)
	assert.EqualValues(t, 1, snapshot.RejectedDeliver)
	assert.EqualValues(t, 1, snapshot.Transitions)
	assert.EqualValues(t, 3, snapshot.Height)
	assert.Equal(t, "deploy_safe", snapshot.CurrentRound)
	assert.EqualValues(t, 1, snapshot.Rounds["round.registration.finished"])
}
