package app

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"

	"roundabci/consensus"
	"roundabci/libs/metric"
	"roundabci/privval"
	"roundabci/state"
	"roundabci/types"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated transaction")
	ErrPayloadRejected = errors.New("payload rejected by current round")
)

// EventRoundTransition is fired on the event switch after every round
// transition, forced ones included. The data is a TransitionData.
const EventRoundTransition = "RoundTransition"

type TransitionData struct {
	Height    int64
	From      consensus.RoundID
	To        consensus.RoundID
	OutOfBand bool
	State     *state.PeriodState
	AppHash   []byte
}

// Driver 把排序好的payload交给当前round，在每个块提交时推进状态机
//
// current round and latest state always change together under mtx, so a
// reader never sees a round paired with another round's state.
type Driver struct {
	mtx          sync.RWMutex
	params       types.ConsensusParams
	currentRound consensus.Round
	latestState  *state.PeriodState
	history      []consensus.Round
	height       int64

	verifier    privval.Verifier
	eventSwitch events.EventSwitch
	metric      *driverMetric

	logger      log.Logger
	roundLogger log.Logger
}

type DriverOption func(*Driver)

// WithVerifier sets the signature check run by CheckTx and DeliverTx.
func WithVerifier(verifier privval.Verifier) DriverOption {
	return func(d *Driver) {
		d.verifier = verifier
	}
}

// WithEventSwitch makes the driver fire EventRoundTransition on evsw.
func WithEventSwitch(evsw events.EventSwitch) DriverOption {
	return func(d *Driver) {
		d.eventSwitch = evsw
	}
}

// WithInitialState starts the registration round from st instead of an
// empty state, e.g. to carry a custom leader strategy.
func WithInitialState(st *state.PeriodState) DriverOption {
	return func(d *Driver) {
		d.latestState = st
	}
}

// NewDriver returns a driver positioned at the registration round.
func NewDriver(params types.ConsensusParams, options ...DriverOption) *Driver {
	d := &Driver{
		params:      params,
		latestState: state.NewPeriodState(),
		verifier:    privval.SchnorrVerifier{},
		metric:      newDriverMetric(),
		logger:      log.NewNopLogger(),
		roundLogger: log.NewNopLogger(),
	}
	for _, opt := range options {
		opt(d)
	}

	d.currentRound = consensus.NewRegistrationRound(d.latestState, params)
	d.metric.MarkRound(d.currentRound.RoundID().String())
	return d
}

func (d *Driver) SetLogger(logger log.Logger) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.logger = logger
	d.roundLogger = logger.With("module", "round")
	d.currentRound.SetLogger(d.roundLogger)
}

// Check reports whether the current round would accept payload.
func (d *Driver) Check(payload types.Payload) bool {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	d.metric.CheckedTx.Inc(1)
	if !d.currentRound.Check(payload) {
		d.metric.RejectedCheck.Inc(1)
		return false
	}
	return true
}

// Deliver applies payload to the current round. It returns false and leaves
// the round untouched when the payload is rejected.
func (d *Driver) Deliver(payload types.Payload) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.metric.DeliveredTx.Inc(1)
	if !d.currentRound.Check(payload) {
		d.metric.RejectedDeliver.Inc(1)
		return false
	}
	d.currentRound.Process(payload)
	return true
}

// authError is ErrUnauthenticated carrying the verifier's cause, so both
// errors.Is(err, ErrUnauthenticated) and errors.Is(err, privval.ErrX) hold.
type authError struct {
	cause error
}

func (e authError) Error() string {
	return ErrUnauthenticated.Error() + ": " + e.cause.Error()
}

func (e authError) Is(target error) bool {
	return target == ErrUnauthenticated
}

func (e authError) Unwrap() error {
	return e.cause
}

// Authenticate runs the configured verifier on tx.
func (d *Driver) Authenticate(tx *types.Transaction) error {
	if err := d.verifier.VerifyTx(tx); err != nil {
		d.metric.Unauthenticated.Inc(1)
		return authError{cause: err}
	}
	return nil
}

// CheckTx authenticates tx before checking its payload; a transaction that
// fails authentication never reaches a round.
func (d *Driver) CheckTx(tx *types.Transaction) error {
	if err := d.Authenticate(tx); err != nil {
		return err
	}
	if !d.Check(tx.Payload) {
		return errors.Wrapf(ErrPayloadRejected, "%v", tx.Payload)
	}
	return nil
}

func (d *Driver) DeliverTx(tx *types.Transaction) error {
	if err := d.Authenticate(tx); err != nil {
		return err
	}
	if !d.Deliver(tx.Payload) {
		return errors.Wrapf(ErrPayloadRejected, "%v", tx.Payload)
	}
	return nil
}

// BeginBlock records the height of the block being executed.
func (d *Driver) BeginBlock(height int64) {
	d.mtx.Lock()
	d.height = height
	d.mtx.Unlock()
	d.metric.Height.Update(height)
}

// Commit asks the current round whether it is finished. On a transition the
// current round moves to the history and its successor takes over. It
// returns the hash of the latest state.
func (d *Driver) Commit() []byte {
	d.mtx.Lock()
	from := d.currentRound
	next, nextRound, ok := from.EndBlock()
	if !ok {
		appHash := d.latestState.Hash()
		d.mtx.Unlock()
		return appHash
	}
	d.swap(nextRound, next)
	data := d.transitionData(from.RoundID(), false)
	d.mtx.Unlock()

	d.logger.Info("round transition", "height", data.Height, "from", data.From, "to", data.To)
	d.finishTransition(data)
	return data.AppHash
}

// ForceTransition replaces the current round with next regardless of its
// end condition. It is the hook used by the timeout layer and by operators;
// next.State() becomes the latest state.
func (d *Driver) ForceTransition(next consensus.Round) {
	d.mtx.Lock()
	from := d.currentRound
	next.SetLogger(d.roundLogger)
	d.swap(next, next.State())
	data := d.transitionData(from.RoundID(), true)
	d.mtx.Unlock()

	d.logger.Info("round transition", "height", data.Height, "from", data.From, "to", data.To, "out_of_band", true)
	d.finishTransition(data)
}

// caller holds mtx
func (d *Driver) swap(nextRound consensus.Round, next *state.PeriodState) {
	d.history = append(d.history, d.currentRound)
	d.currentRound = nextRound
	d.latestState = next
}

// caller holds mtx
func (d *Driver) transitionData(from consensus.RoundID, outOfBand bool) TransitionData {
	return TransitionData{
		Height:    d.height,
		From:      from,
		To:        d.currentRound.RoundID(),
		OutOfBand: outOfBand,
		State:     d.latestState,
		AppHash:   d.latestState.Hash(),
	}
}

// 事件在锁外触发，listener可以回调driver的读接口
func (d *Driver) finishTransition(data TransitionData) {
	d.metric.MarkRoundFinished(data.From.String(), data.OutOfBand)
	d.metric.MarkRound(data.To.String())
	if d.eventSwitch != nil {
		d.eventSwitch.FireEvent(EventRoundTransition, data)
	}
}

func (d *Driver) CurrentRoundID() consensus.RoundID {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.currentRound.RoundID()
}

// CurrentRound returns the round and the state it works on as one
// consistent pair.
func (d *Driver) CurrentRound() (consensus.Round, *state.PeriodState) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.currentRound, d.latestState
}

func (d *Driver) LatestState() *state.PeriodState {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.latestState
}

// History returns the finished rounds, oldest first.
func (d *Driver) History() []consensus.Round {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	history := make([]consensus.Round, len(d.history))
	copy(history, d.history)
	return history
}

func (d *Driver) Height() int64 {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.height
}

func (d *Driver) Params() types.ConsensusParams {
	return d.params
}

// Metric exposes the driver counters for a metric.MetricSet.
func (d *Driver) Metric() metric.MetricItem {
	return d.metric
}
